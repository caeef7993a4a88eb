package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/receipt-gateway/pkg/http"
)

const readinessTimeout = 2 * time.Second

type DBPinger interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

// HealthHandler serves the cheap liveness and readiness checks. The full
// receipt pipeline report lives under /receipts/health.
type HealthHandler struct {
	db DBPinger
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
	e.GET("/ready", h.GetReady)
}

func NewHealthHandler(db DBPinger) *HealthHandler {
	return &HealthHandler{
		db: db,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	ctx.Response.SetBodyString("success")
}

func (h *HealthHandler) GetReady(ctx *xhttp.RequestCtx) {
	if err := h.db.Ping(ctx, readinessTimeout); err != nil {
		writeError(ctx, xhttp.StatusServiceUnavailable, err.Error())
		return
	}
	ctx.Response.SetBodyString("ready")
}
