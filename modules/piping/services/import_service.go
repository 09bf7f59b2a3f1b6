package services

import (
	"context"
	"errors"
	"sort"
	"strconv"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/docid"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/similarity"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/takeoff"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/configuration"
	"github.com/pipetrak/pipetrak/pkg/eventbus"
	"github.com/pipetrak/pipetrak/pkg/metrics"
	"github.com/pipetrak/pipetrak/pkg/repo"
)

var (
	// ErrBatchRejected means validation found hard errors and nothing was
	// written. The ImportResult carries the per-row report.
	ErrBatchRejected = errors.New("import batch rejected")
	// ErrConcurrentImport means another batch holds the project's write lock.
	// Callers retry with backoff.
	ErrConcurrentImport = errors.New("concurrent import in progress")
)

// BatchLocker serializes the write phase of overlapping import batches.
type BatchLocker interface {
	TryLock(ctx context.Context, key int64) (bool, error)
}

// ImportOptions are per-request switches, distinct from the configured
// pipeline tuning.
type ImportOptions struct {
	// Override lets rows that match existing exact identities update those
	// components in place instead of skipping them as pre-existing.
	Override bool
	// DryRun validates and reports without entering the write phase.
	DryRun bool
}

type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ImportResult is the complete batch report. Created counts components (a
// grouped row can create many); updated, skipped and flagged count rows.
type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Flagged int        `json:"flagged"`
	Errors  []RowError `json:"errors"`
}

// ImportService runs the takeoff import pipeline: classify, resolve identity,
// validate the whole batch, then commit all-or-nothing under a per-project
// advisory lock. Anomalies that need a human decision become exceptions, not
// errors.
type ImportService struct {
	components component.Repository
	drawings   drawing.Repository
	templates  template.Repository
	exceptions *ExceptionService
	classifier *Classifier
	locker     BatchLocker
	publisher  eventbus.EventBus
	conf       configuration.ImportOptions
}

func NewImportService(
	components component.Repository,
	drawings drawing.Repository,
	templates template.Repository,
	exceptions *ExceptionService,
	classifier *Classifier,
	locker BatchLocker,
	publisher eventbus.EventBus,
	conf configuration.ImportOptions,
) *ImportService {
	return &ImportService{
		components: components,
		drawings:   drawings,
		templates:  templates,
		exceptions: exceptions,
		classifier: classifier,
		locker:     locker,
		publisher:  publisher,
		conf:       conf,
	}
}

// exactRow is one classified exact-identity row awaiting validation.
type exactRow struct {
	src  takeoff.Row
	typ  comptype.Type
	key  component.IdentityKey
	norm string // normalized drawing number
}

// groupAgg folds every batch row of one grouped identity into the group's
// total requested quantity.
type groupAgg struct {
	typ      comptype.Type
	key      component.IdentityKey
	total    int
	rowLines []int
	attrs    map[string]string
}

// plannedCreate is one component the batch will materialize.
type plannedCreate struct {
	typ         comptype.Type
	key         component.IdentityKey
	drawingNorm string
	attrs       map[string]string
}

// plannedUpdate is an override merge into an existing exact-identity component.
type plannedUpdate struct {
	componentID uuid.UUID
	attrs       map[string]string
	drawingNorm string
}

type importPlan struct {
	result  ImportResult
	creates []plannedCreate
	updates []plannedUpdate
	// newDrawings maps normalized number to the raw spelling first seen.
	newDrawings map[string]string
	// drawingIDs maps normalized number to persisted drawing id; filled for
	// existing drawings during validation, for new ones during commit.
	drawingIDs map[string]uuid.UUID
	similar    []exception.SimilarDrawingPayload
	deltas     []exception.QuantityDeltaPayload
}

func (p *importPlan) fail(row int, field, reason string) {
	p.result.Errors = append(p.result.Errors, RowError{Row: row, Field: field, Reason: reason})
}

// Import validates and commits one takeoff batch for a project. Either every
// row-level write lands or none do; the returned report is complete in both
// cases. With ErrBatchRejected the report's Errors list says why.
func (s *ImportService) Import(ctx context.Context, projectID uuid.UUID, rows []takeoff.Row, opts ImportOptions) (*ImportResult, error) {
	actor, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	var result *ImportResult
	run := func(txCtx context.Context) error {
		plan, err := s.validate(txCtx, projectID, rows, opts)
		if err != nil {
			return err
		}
		result = &plan.result
		if len(plan.result.Errors) > 0 {
			metrics.ImportBatches.WithLabelValues("rejected").Inc()
			return ErrBatchRejected
		}
		if opts.DryRun {
			metrics.ImportBatches.WithLabelValues("dry_run").Inc()
			return nil
		}
		if err := s.commit(txCtx, projectID, plan, actor); err != nil {
			metrics.ImportBatches.WithLabelValues("failed").Inc()
			return err
		}
		metrics.ImportBatches.WithLabelValues("committed").Inc()
		return nil
	}

	err = runInTx(ctx, s.publisher, run)
	if errors.Is(err, ErrBatchRejected) {
		return result, err
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validate is the read phase: it classifies and resolves every row against a
// single bulk snapshot of existing identities and decides the whole batch
// before anything is written.
func (s *ImportService) validate(ctx context.Context, projectID uuid.UUID, rows []takeoff.Row, opts ImportOptions) (*importPlan, error) {
	plan := &importPlan{
		newDrawings: map[string]string{},
		drawingIDs:  map[string]uuid.UUID{},
	}

	var (
		exacts     []exactRow
		groups     = map[string]*groupAgg{}
		groupOrder []string
		typesSeen  = map[comptype.Type]bool{}
		rawByNorm  = map[string]string{}
	)

	for _, row := range rows {
		cls := s.classifier.Classify(row.TypeKeyword)
		switch {
		case cls.Excluded:
			plan.result.Skipped++
			continue
		case cls.Rejected:
			plan.fail(row.Line, "type", "unrecognized type keyword "+strconv.Quote(row.TypeKeyword))
			continue
		}
		typesSeen[cls.Type] = true

		norm := docid.Normalize(row.Drawing)
		if norm == "" {
			plan.fail(row.Line, "drawing", "missing drawing number")
			continue
		}
		if _, ok := rawByNorm[norm]; !ok {
			rawByNorm[norm] = row.Drawing
		}

		switch cls.Type.Class() {
		case comptype.ClassExact:
			key, err := component.NewExactKey(row.NaturalKey)
			if err != nil {
				plan.fail(row.Line, "natural_key", err.Error())
				continue
			}
			exacts = append(exacts, exactRow{src: row, typ: cls.Type, key: key, norm: norm})
		default:
			if row.Quantity <= 0 {
				plan.fail(row.Line, "quantity", "quantity must be positive")
				continue
			}
			key, err := component.NewGroupKey(row.Drawing, row.Commodity, row.Size)
			if err != nil {
				plan.fail(row.Line, "commodity", err.Error())
				continue
			}
			gk := string(cls.Type) + "|" + key.GroupKey()
			agg, ok := groups[gk]
			if !ok {
				agg = &groupAgg{typ: cls.Type, key: key, attrs: map[string]string{}}
				groups[gk] = agg
				groupOrder = append(groupOrder, gk)
			}
			agg.total += row.Quantity
			agg.rowLines = append(agg.rowLines, row.Line)
			for k, v := range row.Attributes {
				agg.attrs[k] = v
			}
		}
	}

	exactByKey, groupMax, groupCount, err := s.loadIdentitySnapshot(ctx, projectID, typesSeen)
	if err != nil {
		return nil, err
	}
	if err := s.resolveDrawings(ctx, projectID, plan, rawByNorm); err != nil {
		return nil, err
	}

	seenInBatch := map[string]int{}
	for _, er := range exacts {
		bk := string(er.typ) + "|" + er.key.NaturalKey
		if first, dup := seenInBatch[bk]; dup {
			plan.fail(er.src.Line, "natural_key",
				"duplicate identity "+strconv.Quote(er.key.NaturalKey)+" (also row "+strconv.Itoa(first)+")")
			continue
		}
		seenInBatch[bk] = er.src.Line

		if rec, ok := exactByKey[bk]; ok {
			// Pre-existing identity: an exact re-submission is idempotent.
			// Only an override run touches the stored component.
			if opts.Override {
				plan.updates = append(plan.updates, plannedUpdate{
					componentID: rec.ComponentID,
					attrs:       er.src.Attributes,
					drawingNorm: er.norm,
				})
				plan.result.Updated++
			} else {
				plan.result.Skipped++
			}
			continue
		}
		plan.creates = append(plan.creates, plannedCreate{
			typ:         er.typ,
			key:         er.key,
			drawingNorm: er.norm,
			attrs:       er.src.Attributes,
		})
		plan.result.Created++
	}

	for _, gk := range groupOrder {
		agg := groups[gk]
		requested := agg.total
		count := groupCount[gk]
		switch {
		case requested == count:
			// Exact re-submission of an already-committed group.
			plan.result.Skipped += len(agg.rowLines)
		case requested > count:
			for _, key := range component.ExpandGroup(agg.key, groupMax[gk], requested-count) {
				plan.creates = append(plan.creates, plannedCreate{
					typ:         agg.typ,
					key:         key,
					drawingNorm: agg.key.Drawing,
					attrs:       agg.attrs,
				})
				plan.result.Created++
			}
			if count > 0 {
				plan.deltas = append(plan.deltas, exception.QuantityDeltaPayload{
					GroupKey:      agg.key.GroupKey(),
					Delta:         requested - count,
					PreviousCount: count,
					RequestedQty:  requested,
				})
				plan.result.Flagged += len(agg.rowLines)
			}
		default:
			// Never auto-delete: the reduction waits for a human decision.
			plan.deltas = append(plan.deltas, exception.QuantityDeltaPayload{
				GroupKey:      agg.key.GroupKey(),
				Delta:         requested - count,
				PreviousCount: count,
				RequestedQty:  requested,
			})
			plan.result.Flagged += len(agg.rowLines)
		}
	}

	return plan, nil
}

// loadIdentitySnapshot bulk-reads every existing identity of the types present
// in the batch: one round trip instead of one per row.
func (s *ImportService) loadIdentitySnapshot(
	ctx context.Context,
	projectID uuid.UUID,
	typesSeen map[comptype.Type]bool,
) (map[string]component.IdentityRecord, map[string]int, map[string]int, error) {
	types := make([]comptype.Type, 0, len(typesSeen))
	for t := range typesSeen {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	existing, err := s.components.ListIdentities(ctx, projectID, types)
	if err != nil {
		return nil, nil, nil, gerrors.Wrap(err, "load existing identities")
	}
	exactByKey := map[string]component.IdentityRecord{}
	groupMax := map[string]int{}
	groupCount := map[string]int{}
	for _, rec := range existing {
		switch rec.Key.Class {
		case comptype.ClassExact:
			exactByKey[string(rec.Type)+"|"+rec.Key.NaturalKey] = rec
		default:
			gk := string(rec.Type) + "|" + rec.Key.GroupKey()
			groupCount[gk]++
			if rec.Key.Sequence > groupMax[gk] {
				groupMax[gk] = rec.Key.Sequence
			}
		}
	}
	return exactByKey, groupMax, groupCount, nil
}

// resolveDrawings maps every referenced drawing number to a persisted id,
// plans creation for unknown numbers and flags near duplicates of existing
// ones. An exact normalized match reuses the existing drawing and is never
// flagged.
func (s *ImportService) resolveDrawings(ctx context.Context, projectID uuid.UUID, plan *importPlan, rawByNorm map[string]string) error {
	if len(rawByNorm) == 0 {
		return nil
	}
	active, err := s.drawings.ListActiveNumbers(ctx, projectID)
	if err != nil {
		return gerrors.Wrap(err, "load active drawings")
	}
	entries := make([]similarity.Entry, 0, len(active))
	byNorm := map[string]drawing.ActiveNumber{}
	for _, a := range active {
		byNorm[a.Normalized] = a
		entries = append(entries, similarity.Entry{ID: a.ID, Value: a.Normalized})
	}
	index := similarity.NewIndex(entries)

	norms := make([]string, 0, len(rawByNorm))
	for norm := range rawByNorm {
		norms = append(norms, norm)
	}
	sort.Strings(norms)

	for _, norm := range norms {
		if existing, ok := byNorm[norm]; ok {
			plan.drawingIDs[norm] = existing.ID
			if rawByNorm[norm] != existing.Number {
				// Cosmetic variant of a known number: reuse the drawing but
				// let a human confirm the spellings mean the same document.
				plan.similar = append(plan.similar, exception.SimilarDrawingPayload{
					DrawingID:  existing.ID,
					Number:     rawByNorm[norm],
					Normalized: norm,
					Matches: []exception.SimilarMatch{
						{DrawingID: existing.ID, Normalized: existing.Normalized, Score: 1.0},
					},
				})
				plan.result.Flagged++
			}
			continue
		}
		plan.newDrawings[norm] = rawByNorm[norm]
		matches := index.Search(norm, s.conf.SimilarityThreshold, s.conf.SimilarityLimit, uuid.Nil)
		if len(matches) == 0 {
			continue
		}
		payload := exception.SimilarDrawingPayload{
			Number:     rawByNorm[norm],
			Normalized: norm,
		}
		for _, m := range matches {
			payload.Matches = append(payload.Matches, exception.SimilarMatch{
				DrawingID:  m.ID,
				Normalized: m.Value,
				Score:      m.Score,
			})
		}
		plan.similar = append(plan.similar, payload)
		plan.result.Flagged++
	}
	return nil
}

// commit is the write phase. It runs under the project advisory lock; the
// unique partial indexes backstop any identity that slipped in between the
// snapshot read and the lock.
func (s *ImportService) commit(ctx context.Context, projectID uuid.UUID, plan *importPlan, actor uuid.UUID) error {
	locked, err := s.locker.TryLock(ctx, repo.AdvisoryLockKey("import", projectID.String()))
	if err != nil {
		return gerrors.Wrap(err, "acquire import lock")
	}
	if !locked {
		return ErrConcurrentImport
	}

	norms := make([]string, 0, len(plan.newDrawings))
	for norm := range plan.newDrawings {
		norms = append(norms, norm)
	}
	sort.Strings(norms)
	for _, norm := range norms {
		created, err := s.drawings.Create(ctx, drawing.New(projectID, plan.newDrawings[norm], "", "", actor))
		if err != nil {
			return gerrors.Wrapf(err, "create drawing %q", plan.newDrawings[norm])
		}
		plan.drawingIDs[norm] = created.ID()
	}

	templates := map[comptype.Type]template.Template{}
	templateFor := func(t comptype.Type) (template.Template, error) {
		if tpl, ok := templates[t]; ok {
			return tpl, nil
		}
		tpl, err := s.templates.GetActiveByType(ctx, t)
		if err != nil {
			return template.Template{}, gerrors.Wrapf(err, "no progress template for type %q", t)
		}
		templates[t] = tpl
		return tpl, nil
	}

	toCreate := make([]component.Component, 0, len(plan.creates))
	for _, pc := range plan.creates {
		tpl, err := templateFor(pc.typ)
		if err != nil {
			return err
		}
		drawingID, ok := plan.drawingIDs[pc.drawingNorm]
		if !ok {
			return gerrors.Errorf("unresolved drawing %q", pc.drawingNorm)
		}
		toCreate = append(toCreate, component.New(projectID, pc.typ, tpl.ID(), pc.key, drawingID, pc.attrs, actor))
	}
	created, err := s.components.CreateMany(ctx, toCreate)
	if err != nil {
		return err
	}
	for _, c := range created {
		publish(ctx, s.publisher, component.CreatedEvent{Result: c})
	}
	metrics.ImportRows.WithLabelValues("created").Add(float64(len(created)))

	for _, pu := range plan.updates {
		existing, err := s.components.GetByID(ctx, pu.componentID)
		if err != nil {
			return err
		}
		if newID, ok := plan.drawingIDs[pu.drawingNorm]; ok && newID != existing.DrawingID() {
			payload := exception.DrawingChangePayload{
				PreviousDrawingID: existing.DrawingID(),
				NewDrawingID:      newID,
			}
			componentID := existing.ID()
			if _, err := s.exceptions.Raise(ctx, projectID, &componentID, exception.TypeDrawingChange, payload, actor); err != nil {
				return err
			}
			plan.result.Flagged++
		}
		if _, err := s.components.Update(ctx, existing.WithAttributes(pu.attrs, actor)); err != nil {
			return err
		}
	}
	metrics.ImportRows.WithLabelValues("updated").Add(float64(len(plan.updates)))
	metrics.ImportRows.WithLabelValues("skipped").Add(float64(plan.result.Skipped))

	for _, payload := range plan.similar {
		if id, ok := plan.drawingIDs[payload.Normalized]; ok {
			payload.DrawingID = id
		}
		if _, err := s.exceptions.Raise(ctx, projectID, nil, exception.TypeSimilarDrawing, payload, actor); err != nil {
			return err
		}
	}
	for _, payload := range plan.deltas {
		if _, err := s.exceptions.RaiseQuantityDelta(ctx, projectID, payload, actor); err != nil {
			return err
		}
	}
	metrics.ImportRows.WithLabelValues("flagged").Add(float64(plan.result.Flagged))
	return nil
}
