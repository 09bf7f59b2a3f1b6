package services_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/takeoff"
	"github.com/pipetrak/pipetrak/modules/piping/services"
)

func TestExceptionRaise_RejectsUnknownType(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	_, err := s.exceptionSvc.Raise(testContext(), uuid.New(), nil, exception.Type("bogus"), nil, testActor)
	require.Error(t, err)
	require.Empty(t, s.exceptions.order)
}

func TestExceptionQuantityDelta_CoalescesWithinWindow(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	projectID := uuid.New()
	ctx := testContext()

	first, err := s.exceptionSvc.RaiseQuantityDelta(ctx, projectID, exception.QuantityDeltaPayload{
		GroupKey: "P-1|CS-150|2\"", Delta: 3, PreviousCount: 10, RequestedQty: 13,
	}, testActor)
	require.NoError(t, err)

	merged, err := s.exceptionSvc.RaiseQuantityDelta(ctx, projectID, exception.QuantityDeltaPayload{
		GroupKey: "P-1|CS-150|2\"", Delta: 2, PreviousCount: 13, RequestedQty: 15,
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, first.ID, merged.ID, "same group within the window folds into one record")
	require.Len(t, s.exceptions.order, 1)

	var payload exception.QuantityDeltaPayload
	require.NoError(t, unmarshalPayload(merged.Payload, &payload))
	require.Equal(t, 5, payload.Delta)
	require.Equal(t, 15, payload.RequestedQty)

	// A different group always gets its own record.
	_, err = s.exceptionSvc.RaiseQuantityDelta(ctx, projectID, exception.QuantityDeltaPayload{
		GroupKey: "P-2|CS-150|2\"", Delta: 1, PreviousCount: 4, RequestedQty: 5,
	}, testActor)
	require.NoError(t, err)
	require.Len(t, s.exceptions.order, 2)
}

func TestExceptionQuantityDelta_WindowExpires(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	projectID := uuid.New()
	ctx := testContext()

	first, err := s.exceptionSvc.RaiseQuantityDelta(ctx, projectID, exception.QuantityDeltaPayload{
		GroupKey: "P-1|CS-150|2\"", Delta: 3, PreviousCount: 10, RequestedQty: 13,
	}, testActor)
	require.NoError(t, err)

	// Age the pending record past the coalesce window.
	aged := s.exceptions.items[first.ID]
	aged.CreatedAt = time.Now().Add(-25 * time.Hour)

	_, err = s.exceptionSvc.RaiseQuantityDelta(ctx, projectID, exception.QuantityDeltaPayload{
		GroupKey: "P-1|CS-150|2\"", Delta: 2, PreviousCount: 13, RequestedQty: 15,
	}, testActor)
	require.NoError(t, err)
	require.Len(t, s.exceptions.order, 2)
}

func TestExceptionResolve_IsTerminal(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	projectID := uuid.New()
	ctx := testContext()

	rec, err := s.exceptionSvc.Raise(ctx, projectID, nil, exception.TypeSimilarDrawing,
		exception.SimilarDrawingPayload{Number: "P-0001", Normalized: "P-1"}, testActor)
	require.NoError(t, err)

	resolved, err := s.exceptionSvc.Resolve(ctx, rec.ID, testActor, services.ResolveParams{Note: "same document, spelling fixed upstream"})
	require.NoError(t, err)
	require.Equal(t, exception.StatusResolved, resolved.Status)
	require.Equal(t, testActor, *resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = s.exceptionSvc.Resolve(ctx, rec.ID, testActor, services.ResolveParams{Note: "again"})
	require.ErrorIs(t, err, exception.ErrTerminal)
	_, err = s.exceptionSvc.Ignore(ctx, rec.ID, testActor, "again")
	require.ErrorIs(t, err, exception.ErrTerminal)
}

func TestExceptionResolve_MergesSimilarDrawing(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	svc := newDrawingService(s)
	projectID := uuid.New()
	ctx := testContext()

	survivor, err := svc.Create(ctx, projectID, "DWG-1042", "Cooling water supply", "A")
	require.NoError(t, err)
	dup, err := svc.Create(ctx, projectID, "DWG-1043", "", "")
	require.NoError(t, err)

	// Welds landed on the duplicate before anyone reviewed the flag.
	_, err = s.importSvc.Import(ctx, projectID, []takeoff.Row{
		weldRow(2, "DWG-1043", "FW-101"),
		weldRow(3, "DWG-1043", "FW-102"),
	}, services.ImportOptions{})
	require.NoError(t, err)

	flagged, err := s.exceptions.List(ctx, &exception.FindParams{ProjectID: projectID, Type: exception.TypeSimilarDrawing})
	require.NoError(t, err)
	require.Len(t, flagged, 1)

	resolved, err := s.exceptionSvc.Resolve(ctx, flagged[0].ID, testActor, services.ResolveParams{
		Note:               "transposed digit, same document",
		MergeIntoDrawingID: survivor.ID(),
	})
	require.NoError(t, err)
	require.Equal(t, exception.StatusResolved, resolved.Status)

	moved, _, err := s.components.GetPaginated(ctx, &component.FindParams{ProjectID: projectID, DrawingID: survivor.ID()})
	require.NoError(t, err)
	require.Len(t, moved, 2, "components follow the surviving drawing")
	for _, c := range moved {
		require.Equal(t, testActor, c.UpdatedBy())
	}

	left, _, err := s.components.GetPaginated(ctx, &component.FindParams{ProjectID: projectID, DrawingID: dup.ID()})
	require.NoError(t, err)
	require.Empty(t, left)

	merged, err := s.drawings.GetByID(ctx, dup.ID())
	require.NoError(t, err)
	require.True(t, merged.Retired())
	require.Contains(t, merged.RetireReason(), survivor.Normalized())
}

func TestExceptionResolve_MergeRejectsSelf(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	svc := newDrawingService(s)
	projectID := uuid.New()
	ctx := testContext()

	_, err := svc.Create(ctx, projectID, "DWG-1042", "", "")
	require.NoError(t, err)
	dup, err := svc.Create(ctx, projectID, "DWG-1043", "", "")
	require.NoError(t, err)

	flagged, err := s.exceptions.List(ctx, &exception.FindParams{ProjectID: projectID, Type: exception.TypeSimilarDrawing})
	require.NoError(t, err)
	require.Len(t, flagged, 1)

	_, err = s.exceptionSvc.Resolve(ctx, flagged[0].ID, testActor, services.ResolveParams{
		MergeIntoDrawingID: dup.ID(),
	})
	require.Error(t, err)

	// The failed merge left the record pending.
	rec, err := s.exceptions.GetByID(ctx, flagged[0].ID)
	require.NoError(t, err)
	require.Equal(t, exception.StatusPending, rec.Status)
}

func TestExceptionIgnore_LeavesComponentsAlone(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	projectID := uuid.New()
	ctx := testContext()

	// A pending negative delta that the reviewer decides to ignore: the
	// extra instances stay.
	_, err := s.importSvc.Import(ctx, projectID, []takeoff.Row{supportRow(2, "P-001", 10)}, services.ImportOptions{})
	require.NoError(t, err)
	_, err = s.importSvc.Import(ctx, projectID, []takeoff.Row{supportRow(2, "P-001", 7)}, services.ImportOptions{})
	require.NoError(t, err)

	pending, err := s.exceptions.List(ctx, &exception.FindParams{ProjectID: projectID, Type: exception.TypeQuantityDelta})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ignored, err := s.exceptionSvc.Ignore(ctx, pending[0].ID, testActor, "takeoff rev was wrong")
	require.NoError(t, err)
	require.Equal(t, exception.StatusIgnored, ignored.Status)

	group, err := s.components.ListGroup(ctx, projectID, "P-1|CS-150|2\"")
	require.NoError(t, err)
	require.Len(t, group, 10)
}
