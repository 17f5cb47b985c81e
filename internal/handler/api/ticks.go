package api

import (
	"encoding/json"
	"fmt"
	"time"

	models "TickWatch/internal/domain/models"
	domrepo "TickWatch/internal/domain/repository"
	"TickWatch/internal/service/cache"
	xhttp "TickWatch/pkg/http"
	xlogger "TickWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TicksHandler serves the read API over stored ticks and signals.
type TicksHandler struct {
	logger   *xlogger.Logger
	store    domrepo.TickStore
	signals  domrepo.SignalStore
	cache    cache.BytesCache
	cacheTTL time.Duration
	live     *LiveHub
}

func NewTicksHandler(logger *xlogger.Logger, store domrepo.TickStore, signals domrepo.SignalStore, c cache.BytesCache, live *LiveHub) *TicksHandler {
	return &TicksHandler{
		logger:   logger,
		store:    store,
		signals:  signals,
		cache:    c,
		cacheTTL: 5 * time.Second,
		live:     live,
	}
}

func (h *TicksHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/ticks", h.Ticks)
	g.GET("/signals", h.Signals)
	g.GET("/instruments", h.Instruments)

	e.GET("/healthz", h.Health)
	if h.live != nil {
		e.GET("/ws/live", h.live.Serve)
	}
}

func (h *TicksHandler) Ticks(c echo.Context) error {
	req := &models.TicksRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := fmt.Sprintf("ticks:%s:%d:%s:%s", req.Symbol, req.N, req.From, req.To)
	if raw, ok := h.cached(key); ok {
		return xhttp.SuccessResponse(c, raw)
	}

	ctx := c.Request().Context()
	var (
		ticks []models.Tick
		err   error
	)
	if req.From != "" || req.To != "" {
		from, okFrom := xhttp.ParseTime(req.From)
		to, okTo := xhttp.ParseTime(req.To)
		if !okFrom || !okTo {
			return xhttp.BadRequestResponse(c, "from/to must be RFC3339 or unix seconds")
		}
		ticks, err = h.store.GetRange(ctx, req.Symbol, from, to)
	} else {
		ticks, err = h.store.GetRecent(ctx, req.Symbol, req.N)
	}
	if err != nil {
		h.logger.Error("ticks query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	h.remember(key, ticks)
	return xhttp.SuccessResponse(c, ticks)
}

func (h *TicksHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := fmt.Sprintf("signals:%s:%s:%d", req.Symbol, req.Kind, req.N)
	if raw, ok := h.cached(key); ok {
		return xhttp.SuccessResponse(c, raw)
	}

	sigs, err := h.signals.GetSignals(c.Request().Context(), req.Symbol, models.SignalKind(req.Kind), req.N)
	if err != nil {
		h.logger.Error("signals query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	h.remember(key, sigs)
	return xhttp.SuccessResponse(c, sigs)
}

func (h *TicksHandler) Instruments(c echo.Context) error {
	symbols, err := h.store.GetSymbols(c.Request().Context())
	if err != nil {
		h.logger.Error("instruments query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, symbols)
}

func (h *TicksHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("store unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *TicksHandler) cached(key string) (json.RawMessage, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil || !ok {
		return nil, false
	}
	return json.RawMessage(b), true
}

func (h *TicksHandler) remember(key string, v interface{}) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = h.cache.SetBytes(key, b, h.cacheTTL)
}
