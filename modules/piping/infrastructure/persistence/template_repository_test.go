package persistence_test

import (
	"errors"
	"testing"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence"
)

func TestTemplateRepository_Versioning(t *testing.T) {
	f := setupTest(t)

	repo := persistence.NewTemplateRepository()

	v1, err := template.New(comptype.Valve, "Valve", 1, []template.Milestone{
		{Name: "Receive", Weight: 20, Order: 1},
		{Name: "Install", Weight: 80, Order: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Create(f.Ctx, v1); err != nil {
		t.Fatal(err)
	}

	v2, err := template.New(comptype.Valve, "Valve", 2, []template.Milestone{
		{Name: "Receive", Weight: 10, Order: 1},
		{Name: "Install", Weight: 70, Order: 2},
		{Name: "Test", Weight: 20, Order: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	v2, err = repo.Create(f.Ctx, v2)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("ActiveIsHighestVersion", func(t *testing.T) {
		active, err := repo.GetActiveByType(f.Ctx, comptype.Valve)
		if err != nil {
			t.Fatal(err)
		}
		if active.Version() != 2 {
			t.Errorf("expected version 2, got %d", active.Version())
		}
		if len(active.Milestones()) != 3 {
			t.Errorf("expected 3 milestones, got %d", len(active.Milestones()))
		}
	})

	t.Run("VersionConflict", func(t *testing.T) {
		dup, err := template.New(comptype.Valve, "Valve", 2, []template.Milestone{
			{Name: "Install", Weight: 100, Order: 1},
		})
		if err != nil {
			t.Fatal(err)
		}
		_, err = repo.Create(f.Ctx, dup)
		if !errors.Is(err, template.ErrInvalid) {
			t.Fatalf("expected ErrInvalid, got %v", err)
		}
	})

	t.Run("MilestonesRoundTrip", func(t *testing.T) {
		got, err := repo.GetByID(f.Ctx, v2.ID())
		if err != nil {
			t.Fatal(err)
		}
		ms := got.Milestones()
		if ms[0].Name != "Receive" || ms[2].Name != "Test" {
			t.Errorf("milestones out of order: %+v", ms)
		}
		if ms[2].Weight != 20 {
			t.Errorf("expected weight 20, got %d", ms[2].Weight)
		}
	})
}
