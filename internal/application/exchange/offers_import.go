package exchange

import (
	"context"
	"fmt"

	"github.com/autoparts/backend/internal/domain/catalog"
	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/infrastructure/cml"
	"go.uber.org/zap"
)

// OffersImportService applies staged offers documents: prices by
// (product, price type) and warehouse stock by (product, warehouse).
// Offers may reference products whose catalog row has not arrived yet;
// that is accepted, the rows join up once the catalog import lands.
type OffersImportService struct {
	store     ObjectStore
	prices    catalog.PriceRepository
	stocks    catalog.StockRepository
	batchSize int
	logger    *zap.Logger
}

// NewOffersImportService creates a new OffersImportService
func NewOffersImportService(store ObjectStore, prices catalog.PriceRepository, stocks catalog.StockRepository, batchSize int, logger *zap.Logger) *OffersImportService {
	return &OffersImportService{
		store:     store,
		prices:    prices,
		stocks:    stocks,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Handle consumes one offers-import job
func (s *OffersImportService) Handle(ctx context.Context, job exchange.Job) error {
	body, err := s.store.Get(ctx, job.ObjectKey)
	if err != nil {
		return fmt.Errorf("failed to open staged document: %w", err)
	}
	defer body.Close()

	totalPrices, totalStocks := 0, 0
	err = cml.ParseOffers(body, s.batchSize, func(batch cml.OffersBatch) error {
		if err := s.prices.UpsertBatch(ctx, batch.Prices); err != nil {
			return fmt.Errorf("failed to upsert price batch: %w", err)
		}
		if err := s.stocks.UpsertBatch(ctx, batch.Stocks); err != nil {
			return fmt.Errorf("failed to upsert stock batch: %w", err)
		}
		totalPrices += len(batch.Prices)
		totalStocks += len(batch.Stocks)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("offers import applied",
		zap.String("object_key", job.ObjectKey),
		zap.String("request_id", job.RequestID),
		zap.Int("prices", totalPrices),
		zap.Int("stocks", totalStocks),
	)
	return nil
}
