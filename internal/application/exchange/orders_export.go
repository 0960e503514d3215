package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/domain/orders"
	"github.com/autoparts/backend/internal/infrastructure/cml"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const exportPrefix = "outbox/orders"

// ErrNoExport signals that no export has been staged yet
var ErrNoExport = errors.New("no order export staged")

// OrdersExportService builds order export documents and stages them for the
// ERP to pull. Exports are full snapshots: the ERP diffs against its own
// state, so rebuilding the whole set on every run keeps both sides in sync
// without change tracking on the shop side.
type OrdersExportService struct {
	store     ObjectStore
	orders    orders.Repository
	publisher JobPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrdersExportService creates a new OrdersExportService
func NewOrdersExportService(store ObjectStore, repo orders.Repository, publisher JobPublisher, logger *zap.Logger) *OrdersExportService {
	return &OrdersExportService{
		store:     store,
		orders:    repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle consumes one orders-export job
func (s *OrdersExportService) Handle(ctx context.Context, job exchange.Job) error {
	key, err := s.Export(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("order export staged",
		zap.String("object_key", key),
		zap.String("request_id", job.RequestID),
	)
	return nil
}

// Export renders the current order set and stages it under the export
// prefix. Returns the object key of the staged document.
func (s *OrdersExportService) Export(ctx context.Context) (string, error) {
	list, err := s.orders.FindAll(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load orders for export: %w", err)
	}

	now := s.now().UTC()
	var buf bytes.Buffer
	if err := cml.WriteOrders(&buf, list, now); err != nil {
		return "", fmt.Errorf("failed to render order export: %w", err)
	}

	key := path.Join(
		exportPrefix,
		now.Format("2006/01/02"),
		fmt.Sprintf("orders_%s.xml", uuid.NewString()),
	)
	if err := s.store.Put(ctx, key, buf.Bytes(), "application/xml"); err != nil {
		return "", fmt.Errorf("failed to stage order export: %w", err)
	}

	s.logger.Info("order export built",
		zap.String("object_key", key),
		zap.Int("orders", len(list)),
	)
	return key, nil
}

// LatestExport returns the most recent export staged today, or ErrNoExport
// when nothing has been staged under today's prefix yet. The ERP always
// pulls against today's date prefix, so yesterday's exports are invisible.
func (s *OrdersExportService) LatestExport(ctx context.Context) (string, error) {
	prefix := path.Join(exportPrefix, s.now().UTC().Format("2006/01/02")) + "/"
	key, err := s.store.LatestUnderPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to locate latest export: %w", err)
	}
	if key == "" {
		return "", ErrNoExport
	}
	return key, nil
}

// OpenLatestExport opens the most recent export staged today for reading
func (s *OrdersExportService) OpenLatestExport(ctx context.Context) (io.ReadCloser, error) {
	key, err := s.LatestExport(ctx)
	if err != nil {
		return nil, err
	}
	body, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open export %q: %w", key, err)
	}
	return body, nil
}

// RequestExport enqueues an export rebuild instead of running it inline.
// Used by the scheduler and by the protocol handler when the ERP asks for
// orders and no fresh export exists.
func (s *OrdersExportService) RequestExport(ctx context.Context, requestID string) error {
	job := exchange.NewJob(exchange.JobOrdersExport, "", "", requestID)
	return s.publisher.Publish(ctx, job)
}
