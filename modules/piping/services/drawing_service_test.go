package services_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/modules/piping/services"
)

func newDrawingService(s *suite) *services.DrawingService {
	conf := testImportConf()
	// Loose enough that one transposed digit still matches.
	conf.SimilarityThreshold = 0.5
	return services.NewDrawingService(s.drawings, s.exceptionSvc, quietBus(), conf)
}

func TestDrawingCreate_FlagsNearDuplicate(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	svc := newDrawingService(s)
	projectID := uuid.New()
	ctx := testContext()

	first, err := svc.Create(ctx, projectID, "DWG-1042", "Cooling water supply", "A")
	require.NoError(t, err)
	require.Equal(t, "DWG-1042", first.Normalized())

	second, err := svc.Create(ctx, projectID, "DWG-1043", "", "")
	require.NoError(t, err)

	flagged, err := s.exceptions.List(ctx, &exception.FindParams{ProjectID: projectID, Type: exception.TypeSimilarDrawing})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	var payload exception.SimilarDrawingPayload
	require.NoError(t, unmarshalPayload(flagged[0].Payload, &payload))
	require.Equal(t, second.ID(), payload.DrawingID)
	require.Len(t, payload.Matches, 1)
	require.Equal(t, first.ID(), payload.Matches[0].DrawingID)
}

func TestDrawingCreate_NormalizedConflict(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	svc := newDrawingService(s)
	projectID := uuid.New()
	ctx := testContext()

	_, err := svc.Create(ctx, projectID, "P-001", "", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, projectID, "p_0001", "", "")
	require.ErrorIs(t, err, drawing.ErrNumberTaken)
}

func TestDrawingSimilar_PreviewExcludesSelf(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	svc := newDrawingService(s)
	projectID := uuid.New()
	ctx := testContext()

	d, err := svc.Create(ctx, projectID, "DWG-1042", "", "")
	require.NoError(t, err)

	matches, err := svc.Similar(ctx, projectID, "DWG-1042", d.ID())
	require.NoError(t, err)
	require.Empty(t, matches)

	matches, err = svc.Similar(ctx, projectID, "DWG-1042", uuid.Nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, 1.0, matches[0].Score)
}

func TestDrawingSearch_FragmentMatch(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	svc := newDrawingService(s)
	projectID := uuid.New()
	ctx := testContext()

	for _, n := range []string{"DWG-1042", "DWG-1051", "ISO-77"} {
		_, err := svc.Create(ctx, projectID, n, "", "")
		require.NoError(t, err)
	}

	found, err := svc.Search(ctx, projectID, "1042", 5)
	require.NoError(t, err)
	require.NotEmpty(t, found)
	require.Equal(t, "DWG-1042", found[0].Normalized)

	found, err = svc.Search(ctx, projectID, "", 5)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestDrawingRetire_FreesNumber(t *testing.T) {
	s := newSuite(t, alwaysLocker{})
	svc := newDrawingService(s)
	projectID := uuid.New()
	ctx := testContext()

	d, err := svc.Create(ctx, projectID, "P-001", "", "")
	require.NoError(t, err)
	retired, err := svc.Retire(ctx, d.ID(), "superseded by rev B package")
	require.NoError(t, err)
	require.True(t, retired.Retired())

	// The number is reusable once its holder is retired.
	_, err = svc.Create(ctx, projectID, "P-001", "", "B")
	require.NoError(t, err)
}
