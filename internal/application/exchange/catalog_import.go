package exchange

import (
	"context"
	"fmt"

	"github.com/autoparts/backend/internal/domain/catalog"
	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/infrastructure/cml"
	"go.uber.org/zap"
)

// CatalogImportService applies staged catalog documents to the product
// store. Each parsed batch is upserted in its own transaction: a failing
// batch never rolls back batches already committed from the same document,
// and re-running the job is safe because upserts are keyed by guid.
type CatalogImportService struct {
	store     ObjectStore
	products  catalog.ProductRepository
	batchSize int
	logger    *zap.Logger
}

// NewCatalogImportService creates a new CatalogImportService
func NewCatalogImportService(store ObjectStore, products catalog.ProductRepository, batchSize int, logger *zap.Logger) *CatalogImportService {
	return &CatalogImportService{
		store:     store,
		products:  products,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Handle consumes one catalog-import job
func (s *CatalogImportService) Handle(ctx context.Context, job exchange.Job) error {
	body, err := s.store.Get(ctx, job.ObjectKey)
	if err != nil {
		return fmt.Errorf("failed to open staged document: %w", err)
	}
	defer body.Close()

	total := 0
	err = cml.ParseCatalog(body, s.batchSize, func(batch []catalog.Product) error {
		if err := s.products.UpsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to upsert product batch: %w", err)
		}
		total += len(batch)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("catalog import applied",
		zap.String("object_key", job.ObjectKey),
		zap.String("request_id", job.RequestID),
		zap.Int("products", total),
	)
	return nil
}
