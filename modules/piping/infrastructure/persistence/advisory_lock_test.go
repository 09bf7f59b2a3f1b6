package persistence_test

import (
	"context"
	"testing"

	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence"
	"github.com/pipetrak/pipetrak/pkg/composables"
)

func TestPgBatchLocker_ContendedKey(t *testing.T) {
	f := setupTest(t)

	locker := persistence.NewPgBatchLocker()

	acquired, err := locker.TryLock(f.Ctx, 7741)
	if err != nil {
		t.Fatal(err)
	}
	if !acquired {
		t.Fatal("expected to acquire free lock")
	}

	// A second transaction contending for the same key must back off
	// without blocking.
	other, err := f.Pool.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := other.Rollback(context.Background()); err != nil {
			t.Logf("rollback: %v", err)
		}
	}()
	otherCtx := composables.WithTx(context.Background(), other)

	acquired, err = locker.TryLock(otherCtx, 7741)
	if err != nil {
		t.Fatal(err)
	}
	if acquired {
		t.Fatal("expected contended lock to fail fast")
	}

	acquired, err = locker.TryLock(otherCtx, 7742)
	if err != nil {
		t.Fatal(err)
	}
	if !acquired {
		t.Fatal("expected unrelated key to be free")
	}
}
