package persistence_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/project"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence"
)

func TestProjectRepository_CRUD(t *testing.T) {
	f := setupTest(t)

	repo := persistence.NewProjectRepository()

	created, err := repo.Create(f.Ctx, project.New("JOB-7741", "Unit 300 Revamp"))
	if err != nil {
		t.Fatal(err)
	}
	if created.ID() == uuid.Nil {
		t.Fatal("expected generated id")
	}

	t.Run("GetByCode", func(t *testing.T) {
		got, err := repo.GetByCode(f.Ctx, "JOB-7741")
		if err != nil {
			t.Fatal(err)
		}
		if got.ID() != created.ID() {
			t.Errorf("expected %s, got %s", created.ID(), got.ID())
		}
		if got.Name() != "Unit 300 Revamp" {
			t.Errorf("unexpected name %q", got.Name())
		}
	})

	t.Run("DuplicateCode", func(t *testing.T) {
		_, err := repo.Create(f.Ctx, project.New("JOB-7741", "Duplicate"))
		if !errors.Is(err, project.ErrCodeTaken) {
			t.Fatalf("expected ErrCodeTaken, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetByID(f.Ctx, uuid.New())
		if !errors.Is(err, project.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		if _, err := repo.Create(f.Ctx, project.New("JOB-7742", "Tank Farm")); err != nil {
			t.Fatal(err)
		}
		all, err := repo.List(f.Ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 projects, got %d", len(all))
		}
	})
}
