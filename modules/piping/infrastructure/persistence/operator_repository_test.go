package persistence_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/operator"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence"
)

func TestOperatorRepository_CRUD(t *testing.T) {
	f := setupTest(t)

	repo := persistence.NewOperatorRepository()

	created, err := repo.Create(f.Ctx, &operator.Operator{Name: "J. Doe", Badge: "B-4471"})
	if err != nil {
		t.Fatal(err)
	}
	if created.Verified {
		t.Fatal("new operators start unverified")
	}

	t.Run("SetVerified", func(t *testing.T) {
		if err := repo.SetVerified(f.Ctx, created.ID, true); err != nil {
			t.Fatal(err)
		}
		got, err := repo.GetByID(f.Ctx, created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Verified {
			t.Error("expected verified operator")
		}
	})

	t.Run("SetVerifiedUnknown", func(t *testing.T) {
		err := repo.SetVerified(f.Ctx, uuid.New(), true)
		if !errors.Is(err, operator.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListOrdersByName", func(t *testing.T) {
		if _, err := repo.Create(f.Ctx, &operator.Operator{Name: "A. Smith", Badge: "B-1102"}); err != nil {
			t.Fatal(err)
		}
		all, err := repo.List(f.Ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 operators, got %d", len(all))
		}
		if all[0].Name != "A. Smith" {
			t.Errorf("expected name ordering, got %q first", all[0].Name)
		}
	})
}
