package exchange_test

import (
	"context"
	"sync"
	"testing"

	appexchange "github.com/autoparts/backend/internal/application/exchange"
	"github.com/autoparts/backend/internal/domain/catalog"
	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/domain/shared"
	"github.com/autoparts/backend/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProductRepo is an in-memory catalog.ProductRepository
type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	batches  []int
	err      error
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[string]catalog.Product)}
}

func (r *fakeProductRepo) UpsertBatch(ctx context.Context, products []catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, p := range products {
		r.products[p.GUID] = p
	}
	r.batches = append(r.batches, len(products))
	return nil
}

func (r *fakeProductRepo) FindByGUID(ctx context.Context, guid string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[guid]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (r *fakeProductRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.products)), nil
}

// fakePriceRepo is an in-memory catalog.PriceRepository
type fakePriceRepo struct {
	mu     sync.Mutex
	prices []catalog.Price
}

func (r *fakePriceRepo) UpsertBatch(ctx context.Context, prices []catalog.Price) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = append(r.prices, prices...)
	return nil
}

func (r *fakePriceRepo) FindByProduct(ctx context.Context, productGUID string) ([]catalog.Price, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Price
	for _, p := range r.prices {
		if p.ProductGUID == productGUID {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeStockRepo is an in-memory catalog.StockRepository
type fakeStockRepo struct {
	mu     sync.Mutex
	stocks []catalog.Stock
}

func (r *fakeStockRepo) UpsertBatch(ctx context.Context, stocks []catalog.Stock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stocks = append(r.stocks, stocks...)
	return nil
}

func (r *fakeStockRepo) FindByProduct(ctx context.Context, productGUID string) ([]catalog.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Stock
	for _, s := range r.stocks {
		if s.ProductGUID == productGUID {
			out = append(out, s)
		}
	}
	return out, nil
}

func stageDocument(t *testing.T, store *storage.MemoryObjectStore, key, doc string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), key, []byte(doc), "application/xml"))
}

func TestCatalogImportService_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts parsed products in batches", func(t *testing.T) {
		store := storage.NewMemoryObjectStore()
		repo := newFakeProductRepo()
		service := appexchange.NewCatalogImportService(store, repo, 2, zap.NewNop())

		doc := `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация>
  <Товар><Ид>g1</Ид><Наименование>Фильтр</Наименование></Товар>
  <Товар><Ид>g2</Ид><Наименование>Колодки</Наименование></Товар>
  <Товар><Ид>g3</Ид><Наименование>Свеча</Наименование></Товар>
</КоммерческаяИнформация>`
		stageDocument(t, store, "inbox/import.xml", doc)

		job := exchange.NewJob(exchange.JobCatalogImport, "import.xml", "inbox/import.xml", "req-1")
		require.NoError(t, service.Handle(ctx, job))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.Equal(t, []int{2, 1}, repo.batches)

		got, err := repo.FindByGUID(ctx, "g2")
		require.NoError(t, err)
		assert.Equal(t, "Колодки", got.Name)
	})

	t.Run("missing staged document fails the job", func(t *testing.T) {
		service := appexchange.NewCatalogImportService(storage.NewMemoryObjectStore(), newFakeProductRepo(), 2, zap.NewNop())

		job := exchange.NewJob(exchange.JobCatalogImport, "import.xml", "inbox/missing.xml", "req-1")
		assert.Error(t, service.Handle(ctx, job))
	})

	t.Run("repository error fails the job for redelivery", func(t *testing.T) {
		store := storage.NewMemoryObjectStore()
		repo := newFakeProductRepo()
		repo.err = assert.AnError
		service := appexchange.NewCatalogImportService(store, repo, 2, zap.NewNop())

		stageDocument(t, store, "inbox/import.xml", `<КоммерческаяИнформация><Товар><Ид>g1</Ид></Товар></КоммерческаяИнформация>`)
		job := exchange.NewJob(exchange.JobCatalogImport, "import.xml", "inbox/import.xml", "req-1")
		assert.ErrorIs(t, service.Handle(ctx, job), assert.AnError)
	})
}

func TestOffersImportService_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts prices and stocks from one document", func(t *testing.T) {
		store := storage.NewMemoryObjectStore()
		prices := &fakePriceRepo{}
		stocks := &fakeStockRepo{}
		service := appexchange.NewOffersImportService(store, prices, stocks, 50, zap.NewNop())

		doc := `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация>
  <Предложение>
    <Ид>g1</Ид>
    <Цены><Цена><ИдТипаЦены>pt-1</ИдТипаЦены><ЦенаЗаЕдиницу>1250</ЦенаЗаЕдиницу><Валюта>RUB</Валюта></Цена></Цены>
    <Склад ИдСклада="wh-1" КоличествоНаСкладе="12"/>
  </Предложение>
</КоммерческаяИнформация>`
		stageDocument(t, store, "inbox/offers.xml", doc)

		job := exchange.NewJob(exchange.JobOffersImport, "offers.xml", "inbox/offers.xml", "req-1")
		require.NoError(t, service.Handle(ctx, job))

		gotPrices, err := prices.FindByProduct(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, gotPrices, 1)
		assert.Equal(t, "pt-1", gotPrices[0].PriceTypeGUID)

		gotStocks, err := stocks.FindByProduct(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, gotStocks, 1)
		assert.Equal(t, "wh-1", gotStocks[0].WarehouseGUID)
	})

	t.Run("offers for unknown products are accepted", func(t *testing.T) {
		store := storage.NewMemoryObjectStore()
		prices := &fakePriceRepo{}
		service := appexchange.NewOffersImportService(store, prices, &fakeStockRepo{}, 50, zap.NewNop())

		doc := `<КоммерческаяИнформация><Предложение><Ид>never-imported</Ид><Цены><Цена><ИдТипаЦены>pt</ИдТипаЦены><ЦенаЗаЕдиницу>10</ЦенаЗаЕдиницу></Цена></Цены></Предложение></КоммерческаяИнформация>`
		stageDocument(t, store, "inbox/offers.xml", doc)

		job := exchange.NewJob(exchange.JobOffersImport, "offers.xml", "inbox/offers.xml", "req-1")
		require.NoError(t, service.Handle(ctx, job))

		got, err := prices.FindByProduct(ctx, "never-imported")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
