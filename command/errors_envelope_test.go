package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

func TestNilCommandReturnsRichError(t *testing.T) {
	var cmd *StoreTokensCommand
	err := cmd.Execute(context.Background(), StoreTokensMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.IntegrationErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.IntegrationErrorInternal, rich.TextCode)
	}
}

func TestNilServiceReturnsRichError(t *testing.T) {
	cmd := NewDisconnectCommand(nil)
	err := cmd.Execute(context.Background(), DisconnectMessage{UserKey: "u", Service: "s"})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
