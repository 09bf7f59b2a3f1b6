package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
)

type TemplateService struct {
	repo template.Repository
}

func NewTemplateService(repo template.Repository) *TemplateService {
	return &TemplateService{repo: repo}
}

func (s *TemplateService) GetByID(ctx context.Context, id uuid.UUID) (template.Template, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TemplateService) GetActiveByType(ctx context.Context, t comptype.Type) (template.Template, error) {
	return s.repo.GetActiveByType(ctx, t)
}

func (s *TemplateService) List(ctx context.Context) ([]template.Template, error) {
	return s.repo.List(ctx)
}

func (s *TemplateService) Create(ctx context.Context, t template.Template) (template.Template, error) {
	return s.repo.Create(ctx, t)
}

// SeedDefaults installs version 1 of the standard industrial piping templates
// for every component type that has none yet. Existing types are left alone,
// so seeding is safe to re-run.
func (s *TemplateService) SeedDefaults(ctx context.Context) (int, error) {
	seeded := 0
	for _, def := range DefaultTemplates() {
		if _, err := s.repo.GetActiveByType(ctx, def.ComponentType()); err == nil {
			continue
		}
		if _, err := s.repo.Create(ctx, def); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}

// DefaultTemplates returns the standard milestone sets used when a project
// has no custom templates. Weights per type sum to 100.
func DefaultTemplates() []template.Template {
	discrete := func(milestones ...template.Milestone) []template.Milestone { return milestones }
	m := func(name string, weight, order int) template.Milestone {
		return template.Milestone{Name: name, Weight: weight, Order: order}
	}
	partial := func(name string, weight, order int) template.Milestone {
		return template.Milestone{Name: name, Weight: weight, Partial: true, Order: order}
	}

	defs := []struct {
		typ        comptype.Type
		name       string
		milestones []template.Milestone
	}{
		{comptype.Spool, "Standard Spool", discrete(
			m("Receive", 5, 1), partial("Fabricate", 16, 2), m("Erect", 39, 3),
			m("Connect", 25, 4), m("Punch", 5, 5), m("Test", 5, 6), m("Restore", 5, 7),
		)},
		{comptype.Valve, "Standard Valve", discrete(
			m("Receive", 5, 1), m("Erect", 40, 2), m("Connect", 40, 3),
			m("Punch", 5, 4), m("Test", 5, 5), m("Restore", 5, 6),
		)},
		{comptype.Weld, "Standard Field Weld", discrete(
			m("Fit Up", 30, 1), m("Weld Out", 50, 2), m("Inspect", 20, 3),
		)},
		{comptype.Instrument, "Standard Instrument", discrete(
			m("Receive", 10, 1), m("Install", 50, 2), m("Connect", 25, 3),
			m("Calibrate", 10, 4), m("Test", 5, 5),
		)},
		{comptype.Support, "Standard Support", discrete(
			m("Receive", 10, 1), m("Install", 80, 2), m("Punch", 10, 3),
		)},
		{comptype.Fitting, "Standard Fitting", discrete(
			m("Receive", 10, 1), m("Erect", 60, 2), m("Connect", 30, 3),
		)},
		{comptype.Flange, "Standard Flange", discrete(
			m("Receive", 10, 1), m("Erect", 50, 2), m("Bolt Up", 40, 3),
		)},
		{comptype.Footage, "Standard Pipe Footage", discrete(
			m("Receive", 5, 1), partial("Erect", 60, 2), partial("Connect", 30, 3), m("Punch", 5, 4),
		)},
		{comptype.Misc, "Standard Miscellaneous", discrete(
			m("Receive", 20, 1), m("Install", 80, 2),
		)},
	}

	out := make([]template.Template, 0, len(defs))
	for _, def := range defs {
		tpl, err := template.New(def.typ, def.name, 1, def.milestones)
		if err != nil {
			// Weights are compile-time constants; a failure here is a bug.
			panic(err)
		}
		out = append(out, tpl)
	}
	return out
}
