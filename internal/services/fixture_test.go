package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"mangashelf-backend/internal/apperrors"
	"mangashelf-backend/internal/events"
	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/repository/memory"
	"mangashelf-backend/internal/sequence"
	"mangashelf-backend/internal/storage"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	recorder  *events.Recorder
	uploadDir string
	orders    *OrderService
	payments  *PaymentService
	pages     *PageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	seq := sequence.NewMemorySequencer()
	recorder := &events.Recorder{}
	uploadDir := t.TempDir()

	objects, err := storage.NewLocalStore(uploadDir)
	require.NoError(t, err)
	staging, err := storage.NewStaging(uploadDir)
	require.NoError(t, err)

	store.AddUser(models.User{ID: 7, Username: "reader", Email: "reader@example.com"})
	store.AddUser(models.User{ID: 8, Username: "other", Email: "other@example.com"})
	store.AddVolume(models.Volume{ID: 3, SeriesID: 1, VolumeNumber: 1, Title: "Vol. 1", Price: decimal.RequireFromString("10.00")})
	store.AddVolume(models.Volume{ID: 5, SeriesID: 1, VolumeNumber: 2, Title: "Vol. 2", Price: decimal.RequireFromString("15.00")})

	f := &fixture{
		store:     store,
		recorder:  recorder,
		uploadDir: uploadDir,
		orders:    NewOrderService(store, seq, recorder, logger),
		payments:  NewPaymentService(store, seq, recorder, logger),
		pages: NewPageService(store, objects, staging, ArchiveLimits{
			MaxEntries:      50,
			MaxArchiveBytes: 1 << 20,
			MaxEntryBytes:   64 << 10,
		}, recorder, logger),
	}
	clock := func() time.Time { return fixedNow }
	f.orders.now = clock
	f.payments.now = clock
	f.pages.now = clock
	return f
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperrors.KindOf(err), "unexpected error: %v", err)
}
