package services

import (
	"context"
	"sort"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/docid"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/similarity"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/configuration"
	"github.com/pipetrak/pipetrak/pkg/eventbus"
)

// DrawingService manages parent documents. Creation runs the same
// near-duplicate check as the import pipeline so manually entered numbers get
// the same scrutiny as imported ones.
type DrawingService struct {
	repo       drawing.Repository
	exceptions *ExceptionService
	publisher  eventbus.EventBus
	conf       configuration.ImportOptions
}

func NewDrawingService(
	repo drawing.Repository,
	exceptions *ExceptionService,
	publisher eventbus.EventBus,
	conf configuration.ImportOptions,
) *DrawingService {
	return &DrawingService{
		repo:       repo,
		exceptions: exceptions,
		publisher:  publisher,
		conf:       conf,
	}
}

func (s *DrawingService) GetByID(ctx context.Context, id uuid.UUID) (drawing.Drawing, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *DrawingService) GetPaginated(ctx context.Context, params *drawing.FindParams) ([]drawing.Drawing, int64, error) {
	if params != nil {
		params.Q = strings.TrimSpace(params.Q)
	}
	return s.repo.GetPaginated(ctx, params)
}

// Create persists a new drawing, flagging near duplicates of existing active
// numbers. A normalized-equal number is a hard conflict surfaced as
// drawing.ErrNumberTaken, not an exception.
func (s *DrawingService) Create(ctx context.Context, projectID uuid.UUID, number, title, revision string) (drawing.Drawing, error) {
	actor, err := composables.UseActorID(ctx)
	if err != nil {
		return drawing.Drawing{}, err
	}
	if docid.Normalize(number) == "" {
		return drawing.Drawing{}, gerrors.New("empty drawing number")
	}

	var created drawing.Drawing
	run := func(txCtx context.Context) error {
		matches, err := s.Similar(txCtx, projectID, number, uuid.Nil)
		if err != nil {
			return err
		}
		created, err = s.repo.Create(txCtx, drawing.New(projectID, number, title, revision, actor))
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			payload := exception.SimilarDrawingPayload{
				DrawingID:  created.ID(),
				Number:     created.Number(),
				Normalized: created.Normalized(),
			}
			for _, m := range matches {
				payload.Matches = append(payload.Matches, exception.SimilarMatch{
					DrawingID:  m.ID,
					Normalized: m.Value,
					Score:      m.Score,
				})
			}
			if _, err := s.exceptions.Raise(txCtx, projectID, nil, exception.TypeSimilarDrawing, payload, actor); err != nil {
				return err
			}
		}
		publish(txCtx, s.publisher, drawing.CreatedEvent{Result: created})
		return nil
	}
	if err := runInTx(ctx, s.publisher, run); err != nil {
		return drawing.Drawing{}, err
	}
	return created, nil
}

// Similar previews the near duplicates of a candidate number among the
// project's active drawings, without writing anything. exclude skips an
// already-persisted drawing's own row.
func (s *DrawingService) Similar(ctx context.Context, projectID uuid.UUID, number string, exclude uuid.UUID) ([]similarity.Match, error) {
	norm := docid.Normalize(number)
	if norm == "" {
		return nil, nil
	}
	active, err := s.repo.ListActiveNumbers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	entries := make([]similarity.Entry, 0, len(active))
	for _, a := range active {
		entries = append(entries, similarity.Entry{ID: a.ID, Value: a.Normalized})
	}
	return similarity.NewIndex(entries).
		Search(norm, s.conf.SimilarityThreshold, s.conf.SimilarityLimit, exclude), nil
}

// Search fuzzy-matches a free-text query against the project's active drawing
// numbers, best first. Used by pickers where the caller types a fragment
// rather than a full number.
func (s *DrawingService) Search(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]drawing.ActiveNumber, error) {
	query = docid.Normalize(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	active, err := s.repo.ListActiveNumbers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(active))
	for i, a := range active {
		values[i] = a.Normalized
	}
	ranks := fuzzy.RankFindNormalizedFold(query, values)
	sort.Sort(ranks)
	out := make([]drawing.ActiveNumber, 0, limit)
	for _, r := range ranks {
		out = append(out, active[r.OriginalIndex])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Retire soft-retires a drawing. Its components stay; retiring only frees the
// number for re-use and hides the document from active listings.
func (s *DrawingService) Retire(ctx context.Context, id uuid.UUID, reason string) (drawing.Drawing, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return drawing.Drawing{}, err
	}
	return s.repo.Update(ctx, d.Retire(reason))
}
