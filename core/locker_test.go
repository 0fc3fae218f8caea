package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRefreshLockerSerializesSameKey(t *testing.T) {
	locker := NewMemoryRefreshLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "user|calendar|acct")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		secondRelease, err := locker.Acquire(ctx, "user|calendar|acct")
		if err != nil {
			t.Errorf("second acquire: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		secondRelease()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire should proceed after release")
	}
}

func TestMemoryRefreshLockerIndependentKeys(t *testing.T) {
	locker := NewMemoryRefreshLocker()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "key-a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Acquire(ctx, "key-b")
		if err != nil {
			t.Errorf("acquire b: %v", err)
		} else {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different keys must not contend")
	}
}

func TestMemoryRefreshLockerCancelledContext(t *testing.T) {
	locker := NewMemoryRefreshLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := locker.Acquire(ctx, "key"); err == nil {
		t.Fatal("expected cancelled context to fail acquire")
	}
}

func TestMemoryRefreshLockerReleaseIsIdempotent(t *testing.T) {
	locker := NewMemoryRefreshLocker()
	release, err := locker.Acquire(context.Background(), "key")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
	release()

	again, err := locker.Acquire(context.Background(), "key")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again()
}
