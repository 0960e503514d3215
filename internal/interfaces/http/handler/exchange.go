// Package handler implements the HTTP surface of the 1C exchange protocol.
package handler

import (
	"errors"
	"io"
	"net/http"

	appexchange "github.com/autoparts/backend/internal/application/exchange"
	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/infrastructure/cache"
	"github.com/autoparts/backend/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExchangeHandler drives the fixed protocol state machine the ERP client
// expects over a single endpoint, dispatched by the (type, mode) query
// pair. Responses are plain text in the newline dialect the client parses.
type ExchangeHandler struct {
	coordinator *appexchange.UploadCoordinator
	exports     *appexchange.OrdersExportService
	tokens      cache.TokenStore
	cfg         config.ExchangeConfig
	logger      *zap.Logger
}

// NewExchangeHandler creates a new ExchangeHandler
func NewExchangeHandler(coordinator *appexchange.UploadCoordinator, exports *appexchange.OrdersExportService, tokens cache.TokenStore, cfg config.ExchangeConfig, logger *zap.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		coordinator: coordinator,
		exports:     exports,
		tokens:      tokens,
		cfg:         cfg,
		logger:      logger,
	}
}

// RegisterRoutes registers the exchange endpoint
func (h *ExchangeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/exchange/1c", h.Handle)
	rg.POST("/exchange/1c", h.Handle)
}

// Handle dispatches one protocol call by its (type, mode) pair
func (h *ExchangeHandler) Handle(c *gin.Context) {
	docType := exchange.DocType(c.Query("type"))
	mode := c.Query("mode")

	if !docType.IsValid() {
		h.unknownMode(c, docType, mode)
		return
	}

	switch mode {
	case "checkauth":
		h.checkauth(c)
	case "init":
		h.init(c)
	case "file":
		h.file(c, docType)
	case "import":
		h.importCall(c, docType)
	case "query":
		if docType != exchange.DocTypeSale {
			h.unknownMode(c, docType, mode)
			return
		}
		h.query(c)
	case "success":
		if docType != exchange.DocTypeSale {
			h.unknownMode(c, docType, mode)
			return
		}
		c.String(http.StatusOK, "success")
	default:
		h.unknownMode(c, docType, mode)
	}
}

// checkauth issues a session token. The client echoes the token back as a
// cookie on every later call of the same exchange session; the token also
// serves as the request id correlating chunks into one upload session.
func (h *ExchangeHandler) checkauth(c *gin.Context) {
	token := uuid.NewString()
	if err := h.tokens.Store(c.Request.Context(), token, h.cfg.SessionTTL); err != nil {
		h.logger.Error("failed to store session token", zap.Error(err))
		c.String(http.StatusInternalServerError, "failure\ninternal error")
		return
	}

	c.SetCookie(h.cfg.CookieName, token, int(h.cfg.SessionTTL.Seconds()), "/", "", false, true)
	c.String(http.StatusOK, "success\ncookie_name\n%s\ncookie_value\n%s", h.cfg.CookieName, token)
}

// init advertises the transfer limits
func (h *ExchangeHandler) init(c *gin.Context) {
	if _, ok := h.session(c); !ok {
		return
	}
	c.String(http.StatusOK, "zip=yes\nfile_limit=%d", h.cfg.FileLimit)
}

// file stores one uploaded chunk. Each chunk auto-finalizes after storage
// as a fallback for ERP variants that never call import explicitly; a
// well-behaved client's later import call then finds no session and is
// answered as already imported.
func (h *ExchangeHandler) file(c *gin.Context, docType exchange.DocType) {
	token, ok := h.session(c)
	if !ok {
		return
	}
	filename := c.Query("filename")
	if filename == "" {
		c.String(http.StatusBadRequest, "failure\nfilename required")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "failure\nfailed to read chunk")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.coordinator.StoreChunk(ctx, docType, filename, body, token); err != nil {
		h.logger.Error("failed to store chunk",
			zap.String("filename", filename),
			zap.Error(err),
		)
		c.String(http.StatusInternalServerError, "failure\ninternal error")
		return
	}

	if _, err := h.coordinator.Finalize(ctx, docType, filename, token); err != nil && !errors.Is(err, appexchange.ErrNoSession) {
		h.logger.Error("failed to finalize chunk upload",
			zap.String("filename", filename),
			zap.Error(err),
		)
		c.String(http.StatusInternalServerError, "failure\ninternal error")
		return
	}

	c.String(http.StatusOK, "success")
}

// importCall finalizes an upload explicitly. The auto-finalize on the last
// chunk usually consumed the session already, which is reported as success.
func (h *ExchangeHandler) importCall(c *gin.Context, docType exchange.DocType) {
	token, ok := h.session(c)
	if !ok {
		return
	}
	filename := c.Query("filename")
	if filename == "" {
		c.String(http.StatusBadRequest, "failure\nfilename required")
		return
	}

	_, err := h.coordinator.Finalize(c.Request.Context(), docType, filename, token)
	switch {
	case err == nil:
		c.String(http.StatusOK, "progress\nqueued")
	case errors.Is(err, appexchange.ErrNoSession):
		c.String(http.StatusOK, "success\nalready imported")
	case errors.Is(err, exchange.ErrUnsupportedDocType):
		c.String(http.StatusBadRequest, "failure\nunsupported document type")
	default:
		h.logger.Error("failed to finalize upload",
			zap.String("filename", filename),
			zap.Error(err),
		)
		c.String(http.StatusInternalServerError, "failure\ninternal error")
	}
}

// query returns the latest staged order export, or schedules one and
// reports progress when nothing is staged yet.
func (h *ExchangeHandler) query(c *gin.Context) {
	token, ok := h.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	body, err := h.exports.OpenLatestExport(ctx)
	if errors.Is(err, appexchange.ErrNoExport) {
		if err := h.exports.RequestExport(ctx, token); err != nil {
			h.logger.Error("failed to schedule order export", zap.Error(err))
			c.String(http.StatusInternalServerError, "failure\ninternal error")
			return
		}
		c.String(http.StatusOK, "progress\norders export scheduled")
		return
	}
	if err != nil {
		h.logger.Error("failed to open order export", zap.Error(err))
		c.String(http.StatusInternalServerError, "failure\ninternal error")
		return
	}
	defer body.Close()

	c.Header("Content-Type", "application/xml")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		h.logger.Error("failed to stream order export", zap.Error(err))
	}
}

// session validates the session cookie and returns its token. Writes the
// failure response itself when the session is missing or expired.
func (h *ExchangeHandler) session(c *gin.Context) (string, bool) {
	token, err := c.Cookie(h.cfg.CookieName)
	if err != nil || token == "" {
		c.String(http.StatusUnauthorized, "failure\nsession expired")
		return "", false
	}
	valid, err := h.tokens.Valid(c.Request.Context(), token)
	if err != nil {
		h.logger.Error("failed to validate session token", zap.Error(err))
		c.String(http.StatusInternalServerError, "failure\ninternal error")
		return "", false
	}
	if !valid {
		c.String(http.StatusUnauthorized, "failure\nsession expired")
		return "", false
	}
	return token, true
}

func (h *ExchangeHandler) unknownMode(c *gin.Context, docType exchange.DocType, mode string) {
	c.String(http.StatusBadRequest, "failure\nunknown mode %s:%s", docType, mode)
}
