package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	appexchange "github.com/autoparts/backend/internal/application/exchange"
	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/domain/orders"
	"github.com/autoparts/backend/internal/domain/shared"
	"github.com/autoparts/backend/internal/infrastructure/cache"
	"github.com/autoparts/backend/internal/infrastructure/config"
	"github.com/autoparts/backend/internal/infrastructure/storage"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePublisher struct {
	mu   sync.Mutex
	jobs []exchange.Job
}

func (p *capturePublisher) Publish(ctx context.Context, job exchange.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *capturePublisher) published() []exchange.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]exchange.Job(nil), p.jobs...)
}

type stubOrderRepo struct {
	orders []orders.Order
}

func (r *stubOrderRepo) FindByGUID(ctx context.Context, guid string) (*orders.Order, error) {
	return nil, shared.ErrNotFound
}

func (r *stubOrderRepo) FindByNumber(ctx context.Context, number string) (*orders.Order, error) {
	return nil, shared.ErrNotFound
}

func (r *stubOrderRepo) Save(ctx context.Context, order *orders.Order) error { return nil }

func (r *stubOrderRepo) FindAll(ctx context.Context) ([]orders.Order, error) {
	return r.orders, nil
}

type exchangeFixture struct {
	engine    *gin.Engine
	store     *storage.MemoryObjectStore
	publisher *capturePublisher
	exports   *appexchange.OrdersExportService
	cfg       config.ExchangeConfig
}

func newExchangeFixture(t *testing.T) *exchangeFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &exchangeFixture{
		store:     storage.NewMemoryObjectStore(),
		publisher: &capturePublisher{},
		cfg: config.ExchangeConfig{
			CookieName: "exchange-session",
			SessionTTL: time.Hour,
			FileLimit:  1 << 20,
			BatchSize:  100,
		},
	}

	tokens := cache.NewInMemoryTokenStore()
	t.Cleanup(func() { tokens.Close() })

	coordinator := appexchange.NewUploadCoordinator(f.store, f.publisher, appexchange.NewSessionRegistry(), zap.NewNop())
	f.exports = appexchange.NewOrdersExportService(f.store, &stubOrderRepo{
		orders: []orders.Order{{GUID: "og-1", Number: "WEB-1", Status: orders.StatusNew, Total: decimal.RequireFromString("100")}},
	}, f.publisher, zap.NewNop())

	h := NewExchangeHandler(coordinator, f.exports, tokens, f.cfg, zap.NewNop())
	f.engine = gin.New()
	h.RegisterRoutes(f.engine.Group("/"))
	return f
}

func (f *exchangeFixture) do(t *testing.T, method, target, cookie string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: f.cfg.CookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func readObject(t *testing.T, store *storage.MemoryObjectStore, key string) string {
	t.Helper()
	body, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	return string(data)
}

// authenticate runs checkauth and returns the issued session token
func (f *exchangeFixture) authenticate(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=checkauth", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 5)
	return lines[4]
}

func TestExchangeHandler_Checkauth(t *testing.T) {
	f := newExchangeFixture(t)

	rec := f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=checkauth", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "success", lines[0])
	assert.Equal(t, "cookie_name", lines[1])
	assert.Equal(t, "exchange-session", lines[2])
	assert.Equal(t, "cookie_value", lines[3])
	assert.NotEmpty(t, lines[4])

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "exchange-session", cookies[0].Name)
	assert.Equal(t, lines[4], cookies[0].Value)
}

func TestExchangeHandler_Init(t *testing.T) {
	f := newExchangeFixture(t)

	t.Run("advertises transfer limits", func(t *testing.T) {
		token := f.authenticate(t)
		rec := f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=init", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "zip=yes\nfile_limit=1048576", rec.Body.String())
	})

	t.Run("rejects a missing session", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=init", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "failure\nsession expired", rec.Body.String())
	})

	t.Run("rejects an unknown token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=init", "forged-token", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "failure\nsession expired", rec.Body.String())
	})
}

func TestExchangeHandler_FileAndImport(t *testing.T) {
	t.Run("chunk upload stores, finalizes and queues", func(t *testing.T) {
		f := newExchangeFixture(t)
		token := f.authenticate(t)

		rec := f.do(t, http.MethodPost, "/exchange/1c?type=catalog&mode=file&filename=import.xml", token, "<import/>")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", rec.Body.String())

		jobs := f.publisher.published()
		require.Len(t, jobs, 1)
		assert.Equal(t, exchange.JobCatalogImport, jobs[0].Type)
		assert.Equal(t, token, jobs[0].RequestID)

		body := readObject(t, f.store, jobs[0].ObjectKey)
		assert.Equal(t, "<import/>", body)
	})

	t.Run("import after auto-finalize reports already imported", func(t *testing.T) {
		f := newExchangeFixture(t)
		token := f.authenticate(t)

		rec := f.do(t, http.MethodPost, "/exchange/1c?type=catalog&mode=file&filename=import.xml", token, "<import/>")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=import&filename=import.xml", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success\nalready imported", rec.Body.String())
		assert.Len(t, f.publisher.published(), 1)
	})

	t.Run("import with no prior upload reports already imported", func(t *testing.T) {
		f := newExchangeFixture(t)
		token := f.authenticate(t)

		rec := f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=import&filename=import.xml", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success\nalready imported", rec.Body.String())
	})

	t.Run("file without filename fails", func(t *testing.T) {
		f := newExchangeFixture(t)
		token := f.authenticate(t)

		rec := f.do(t, http.MethodPost, "/exchange/1c?type=catalog&mode=file", token, "<import/>")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "failure\nfilename required", rec.Body.String())
	})

	t.Run("file without a session fails", func(t *testing.T) {
		f := newExchangeFixture(t)

		rec := f.do(t, http.MethodPost, "/exchange/1c?type=catalog&mode=file&filename=import.xml", "", "<import/>")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("offers filename routes to the offers queue", func(t *testing.T) {
		f := newExchangeFixture(t)
		token := f.authenticate(t)

		rec := f.do(t, http.MethodPost, "/exchange/1c?type=catalog&mode=file&filename=offers0_1.xml", token, "<offers/>")
		require.Equal(t, http.StatusOK, rec.Code)

		jobs := f.publisher.published()
		require.Len(t, jobs, 1)
		assert.Equal(t, exchange.JobOffersImport, jobs[0].Type)
	})

	t.Run("sale upload routes to the orders-apply queue", func(t *testing.T) {
		f := newExchangeFixture(t)
		token := f.authenticate(t)

		rec := f.do(t, http.MethodPost, "/exchange/1c?type=sale&mode=file&filename=orders.xml", token, "<orders/>")
		require.Equal(t, http.StatusOK, rec.Code)

		jobs := f.publisher.published()
		require.Len(t, jobs, 1)
		assert.Equal(t, exchange.JobOrdersApply, jobs[0].Type)
	})
}

func TestExchangeHandler_Query(t *testing.T) {
	t.Run("no staged export schedules one", func(t *testing.T) {
		f := newExchangeFixture(t)
		token := f.authenticate(t)

		rec := f.do(t, http.MethodGet, "/exchange/1c?type=sale&mode=query", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "progress\norders export scheduled", rec.Body.String())

		jobs := f.publisher.published()
		require.Len(t, jobs, 1)
		assert.Equal(t, exchange.JobOrdersExport, jobs[0].Type)
		assert.Equal(t, token, jobs[0].RequestID)
	})

	t.Run("staged export streams as xml", func(t *testing.T) {
		f := newExchangeFixture(t)
		token := f.authenticate(t)

		_, err := f.exports.Export(context.Background())
		require.NoError(t, err)

		rec := f.do(t, http.MethodGet, "/exchange/1c?type=sale&mode=query", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
		assert.Contains(t, rec.Body.String(), "<Ид>og-1</Ид>")
	})

	t.Run("query is a sale-only mode", func(t *testing.T) {
		f := newExchangeFixture(t)
		token := f.authenticate(t)

		rec := f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=query", token, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "failure\nunknown mode catalog:query", rec.Body.String())
	})
}

func TestExchangeHandler_SuccessAndUnknownModes(t *testing.T) {
	f := newExchangeFixture(t)

	t.Run("sale success acknowledges", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/exchange/1c?type=sale&mode=success", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", rec.Body.String())
	})

	t.Run("success is a sale-only mode", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=success", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/exchange/1c?type=reference&mode=checkauth", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "failure\nunknown mode reference:checkauth", rec.Body.String())
	})

	t.Run("unknown mode is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/exchange/1c?type=catalog&mode=frobnicate", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "failure\nunknown mode catalog:frobnicate", rec.Body.String())
	})
}
