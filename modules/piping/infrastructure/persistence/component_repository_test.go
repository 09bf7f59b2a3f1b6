package persistence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/project"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/itf"
)

type componentFixture struct {
	env     *itf.TestEnvironment
	project project.Project
	drawing drawing.Drawing
	weldTpl template.Template
	supTpl  template.Template
	repo    component.Repository
}

func setupComponents(t *testing.T) *componentFixture {
	t.Helper()
	f := setupTest(t)

	p, err := persistence.NewProjectRepository().Create(f.Ctx, project.New("JOB-200", "Component tests"))
	if err != nil {
		t.Fatal(err)
	}
	d, err := persistence.NewDrawingRepository().Create(f.Ctx, drawing.New(p.ID(), "P-101", "ISO", "A", f.Actor))
	if err != nil {
		t.Fatal(err)
	}

	templates := persistence.NewTemplateRepository()
	weldTpl, err := template.New(comptype.Weld, "Weld", 1, []template.Milestone{
		{Name: "Fit Up", Weight: 30, Order: 1},
		{Name: "Weld Out", Weight: 50, Order: 2},
		{Name: "Inspect", Weight: 20, Order: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	weldTpl, err = templates.Create(f.Ctx, weldTpl)
	if err != nil {
		t.Fatal(err)
	}
	supTpl, err := template.New(comptype.Support, "Support", 1, []template.Milestone{
		{Name: "Receive", Weight: 10, Order: 1},
		{Name: "Install", Weight: 80, Order: 2},
		{Name: "Punch", Weight: 10, Order: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	supTpl, err = templates.Create(f.Ctx, supTpl)
	if err != nil {
		t.Fatal(err)
	}

	return &componentFixture{
		env:     f,
		project: p,
		drawing: d,
		weldTpl: weldTpl,
		supTpl:  supTpl,
		repo:    persistence.NewComponentRepository(),
	}
}

func (cf *componentFixture) weld(t *testing.T, naturalKey string) component.Component {
	t.Helper()
	key, err := component.NewExactKey(naturalKey)
	if err != nil {
		t.Fatal(err)
	}
	c, err := cf.repo.Create(
		cf.env.Ctx,
		component.New(cf.project.ID(), comptype.Weld, cf.weldTpl.ID(), key, cf.drawing.ID(), nil, cf.env.Actor),
	)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestComponentRepository_ExactIdentity(t *testing.T) {
	cf := setupComponents(t)
	f := cf.env

	created := cf.weld(t, "FW-051")

	got, err := cf.repo.GetByID(f.Ctx, created.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got.Identity().NaturalKey != "FW-51" {
		t.Errorf("expected normalized key FW-51, got %q", got.Identity().NaturalKey)
	}

	t.Run("DuplicateIdentityRejected", func(t *testing.T) {
		key, err := component.NewExactKey("fw-0051")
		if err != nil {
			t.Fatal(err)
		}
		_, err = cf.repo.Create(
			f.Ctx,
			component.New(cf.project.ID(), comptype.Weld, cf.weldTpl.ID(), key, cf.drawing.ID(), nil, f.Actor),
		)
		if !errors.Is(err, component.ErrIdentityTaken) {
			t.Fatalf("expected ErrIdentityTaken, got %v", err)
		}
	})

	t.Run("ListIdentities", func(t *testing.T) {
		cf.weld(t, "FW-052")
		recs, err := cf.repo.ListIdentities(f.Ctx, cf.project.ID(), []comptype.Type{comptype.Weld})
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 {
			t.Fatalf("expected 2 identities, got %d", len(recs))
		}
	})

	t.Run("RetiredExcludedFromIdentities", func(t *testing.T) {
		if _, err := cf.repo.Update(f.Ctx, created.Retire("cut out", f.Actor)); err != nil {
			t.Fatal(err)
		}
		recs, err := cf.repo.ListIdentities(f.Ctx, cf.project.ID(), []comptype.Type{comptype.Weld})
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 {
			t.Fatalf("expected 1 identity after retire, got %d", len(recs))
		}
	})
}

func TestComponentRepository_GroupedIdentity(t *testing.T) {
	cf := setupComponents(t)
	f := cf.env

	group, err := component.NewGroupKey("P-101", "CS-150", `2"`)
	if err != nil {
		t.Fatal(err)
	}
	var batch []component.Component
	for _, key := range component.ExpandGroup(group, 0, 3) {
		batch = append(batch, component.New(cf.project.ID(), comptype.Support, cf.supTpl.ID(), key, cf.drawing.ID(), nil, f.Actor))
	}
	created, err := cf.repo.CreateMany(f.Ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 created, got %d", len(created))
	}

	members, err := cf.repo.ListGroup(f.Ctx, cf.project.ID(), group.GroupKey())
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	for i, m := range members {
		if m.Identity().Sequence != i+1 {
			t.Errorf("expected sequence %d, got %d", i+1, m.Identity().Sequence)
		}
	}
}

func TestComponentRepository_UpdateProgress(t *testing.T) {
	cf := setupComponents(t)
	f := cf.env

	created := cf.weld(t, "FW-060")

	advanced := created.WithMilestone(cf.weldTpl, "Fit Up", 100, f.Actor)
	saved, err := cf.repo.UpdateProgress(f.Ctx, advanced)
	if err != nil {
		t.Fatal(err)
	}
	if saved.PercentComplete().String() != "30" {
		t.Errorf("expected 30 percent, got %s", saved.PercentComplete().String())
	}
	if saved.MilestoneValue("Fit Up") != 100 {
		t.Errorf("expected Fit Up complete, got %v", saved.MilestoneValue("Fit Up"))
	}

	// Attribute edits made between read and progress write survive.
	tagged := created.WithAttributes(map[string]string{"test_package": "TP-01"}, f.Actor)
	if _, err := cf.repo.Update(f.Ctx, tagged); err != nil {
		t.Fatal(err)
	}
	again, err := cf.repo.UpdateProgress(f.Ctx, saved.WithMilestone(cf.weldTpl, "Weld Out", 100, f.Actor))
	if err != nil {
		t.Fatal(err)
	}
	got, err := cf.repo.GetByID(f.Ctx, created.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got.Attributes()["test_package"] != "TP-01" {
		t.Errorf("attribute clobbered by progress write: %v", got.Attributes())
	}
	if again.PercentComplete().String() != "80" {
		t.Errorf("expected 80 percent, got %s", again.PercentComplete().String())
	}
}

func TestComponentRepository_GetPaginated(t *testing.T) {
	cf := setupComponents(t)
	f := cf.env

	for _, k := range []string{"FW-1", "FW-2", "FW-3"} {
		cf.weld(t, k)
	}

	page, total, err := cf.repo.GetPaginated(f.Ctx, &component.FindParams{
		ProjectID: cf.project.ID(),
		Type:      comptype.Weld,
		Limit:     2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(page) != 2 {
		t.Errorf("expected page of 2, got %d", len(page))
	}

	_, err = cf.repo.GetByID(f.Ctx, uuid.New())
	if !errors.Is(err, component.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestComponentRepository_GroupedIdentityIsPerType(t *testing.T) {
	cf := setupComponents(t)
	f := cf.env

	// Supports and fittings may legitimately share a (drawing, commodity,
	// size, sequence) quadruple; uniqueness is scoped by component type.
	group, err := component.NewGroupKey("P-101", "CS-150", `2"`)
	if err != nil {
		t.Fatal(err)
	}
	key := component.ExpandGroup(group, 0, 1)[0]
	if _, err := cf.repo.Create(f.Ctx, component.New(cf.project.ID(), comptype.Support, cf.supTpl.ID(), key, cf.drawing.ID(), nil, f.Actor)); err != nil {
		t.Fatal(err)
	}
	if _, err := cf.repo.Create(f.Ctx, component.New(cf.project.ID(), comptype.Fitting, cf.supTpl.ID(), key, cf.drawing.ID(), nil, f.Actor)); err != nil {
		t.Fatalf("same group quadruple under another type must not collide: %v", err)
	}

	if _, err := cf.repo.Create(f.Ctx, component.New(cf.project.ID(), comptype.Support, cf.supTpl.ID(), key, cf.drawing.ID(), nil, f.Actor)); !errors.Is(err, component.ErrIdentityTaken) {
		t.Fatalf("expected ErrIdentityTaken for a true duplicate, got %v", err)
	}
}

func TestComponentRepository_GetByIDForUpdateBlocksSecondWriter(t *testing.T) {
	f := setupTest(t)
	repo := persistence.NewComponentRepository()

	// Row locks only conflict across transactions on committed rows, so the
	// fixture commits its component instead of using the test transaction.
	setup, err := f.Pool.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	setupCtx := composables.WithTx(context.Background(), setup)
	p, err := persistence.NewProjectRepository().Create(setupCtx, project.New("JOB-401", "Lock tests"))
	if err != nil {
		t.Fatal(err)
	}
	d, err := persistence.NewDrawingRepository().Create(setupCtx, drawing.New(p.ID(), "P-401", "ISO", "A", f.Actor))
	if err != nil {
		t.Fatal(err)
	}
	tpl, err := template.New(comptype.Weld, "Weld", 1, []template.Milestone{
		{Name: "Fit Up", Weight: 30, Order: 1},
		{Name: "Weld Out", Weight: 70, Order: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	tpl, err = persistence.NewTemplateRepository().Create(setupCtx, tpl)
	if err != nil {
		t.Fatal(err)
	}
	key, err := component.NewExactKey("FW-401")
	if err != nil {
		t.Fatal(err)
	}
	c, err := repo.Create(setupCtx, component.New(p.ID(), comptype.Weld, tpl.ID(), key, d.ID(), nil, f.Actor))
	if err != nil {
		t.Fatal(err)
	}
	if err := setup.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}

	first, err := f.Pool.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = first.Rollback(context.Background()) }()
	if _, err := repo.GetByIDForUpdate(composables.WithTx(context.Background(), first), c.ID()); err != nil {
		t.Fatal(err)
	}

	second, err := f.Pool.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = second.Rollback(context.Background()) }()
	if _, err := second.Exec(context.Background(), "SET LOCAL lock_timeout = '200ms'"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetByIDForUpdate(composables.WithTx(context.Background(), second), c.ID()); err == nil {
		t.Fatal("expected second writer to time out on the held row lock")
	}

	// Releasing the first transaction frees the row again.
	if err := first.Rollback(context.Background()); err != nil {
		t.Fatal(err)
	}
	third, err := f.Pool.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = third.Rollback(context.Background()) }()
	if _, err := repo.GetByIDForUpdate(composables.WithTx(context.Background(), third), c.ID()); err != nil {
		t.Fatalf("row should be lockable after release: %v", err)
	}
}
