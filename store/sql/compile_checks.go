package sqlstore

import (
	"github.com/goliatone/go-integrations/core"
)

var (
	_ core.IntegrationStore = (*IntegrationStore)(nil)
	_ core.HistoryStore     = (*HistoryStore)(nil)
	_ core.HistoryStore     = (*CachedHistoryStore)(nil)
)
