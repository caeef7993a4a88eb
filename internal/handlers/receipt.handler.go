package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"
	"github.com/nimasrn/receipt-gateway/internal/model"
	xhttp "github.com/nimasrn/receipt-gateway/pkg/http"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
)

// 1x1 transparent GIF
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type ReceiptService interface {
	GenerateAndSend(ctx context.Context, req model.ReceiptRequest) (*model.ReceiptResult, error)
	ProcessPending(ctx context.Context) (*model.BatchResult, error)
	Health(ctx context.Context) *model.HealthReport
	ClearCache(ctx context.Context, force bool) *model.CacheClearResult
	DeliveryHistory(ctx context.Context, transactionID string) ([]*model.DeliveryLog, error)
	TrackOpen(ctx context.Context, token string) error
	ReceiptLink(ctx context.Context, transactionID string) (*model.ReceiptLink, error)
}

type ReceiptHandler struct {
	svc ReceiptService
}

func RegisterReceiptRoutes(e *router.Group, h *ReceiptHandler) {
	e.POST("/receipts", h.GenerateReceipt)
	e.POST("/receipts/batch", h.ProcessPending)
	e.GET("/receipts/health", h.Health)
	e.DELETE("/receipts/cache", h.ClearCache)
	e.GET("/receipts/logs/{transactionId}", h.DeliveryHistory)
	e.GET("/receipts/link/{transactionId}", h.ReceiptLink)
	e.GET("/receipts/open/{token}", h.TrackOpen)
}

func NewReceiptHandler(receiptService ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{
		svc: receiptService,
	}
}

type donatorInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type sapeurInfo struct {
	Name string `json:"name"`
}

type receiptOptions struct {
	Quality   string `json:"quality"`
	SendEmail *bool  `json:"sendEmail"`
}

type generateReceiptRequest struct {
	TransactionID string          `json:"transactionId"`
	Resend        bool            `json:"resend"`
	DonatorInfo   *donatorInfo    `json:"donatorInfo"`
	SapeurInfo    *sapeurInfo     `json:"sapeurInfo"`
	Options       *receiptOptions `json:"options"`
}

func (r generateReceiptRequest) toModel(userAgent string) model.ReceiptRequest {
	req := model.ReceiptRequest{
		TransactionID: r.TransactionID,
		Resend:        r.Resend,
		UserAgent:     userAgent,
	}
	if r.DonatorInfo != nil {
		req.DonatorName = r.DonatorInfo.Name
		req.DonatorEmail = r.DonatorInfo.Email
	}
	if r.SapeurInfo != nil {
		req.CollectorName = r.SapeurInfo.Name
	}
	if r.Options != nil {
		req.SendEmail = r.Options.SendEmail
		req.Quality = model.Quality(strings.ToLower(strings.TrimSpace(r.Options.Quality)))
	}
	return req
}

type deliveryHistoryResponse struct {
	TransactionID string               `json:"transactionId"`
	Items         []*model.DeliveryLog `json:"items"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ReceiptHandler) GenerateReceipt(ctx *xhttp.RequestCtx) {
	var req generateReceiptRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := h.svc.GenerateAndSend(ctx, req.toModel(string(ctx.Request.Header.UserAgent())))
	if res == nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, statusFor(err), res)
}

func (h *ReceiptHandler) ProcessPending(ctx *xhttp.RequestCtx) {
	res, err := h.svc.ProcessPending(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}

func (h *ReceiptHandler) Health(ctx *xhttp.RequestCtx) {
	report := h.svc.Health(ctx)
	status := xhttp.StatusOK
	if report.Status != model.HealthHealthy {
		status = xhttp.StatusServiceUnavailable
	}
	writeJSON(ctx, status, report)
}

func (h *ReceiptHandler) ClearCache(ctx *xhttp.RequestCtx) {
	force := strings.EqualFold(query(ctx, "force"), "true")
	writeJSON(ctx, xhttp.StatusOK, h.svc.ClearCache(ctx, force))
}

func (h *ReceiptHandler) DeliveryHistory(ctx *xhttp.RequestCtx) {
	id := pathParam(ctx, "transactionId")
	items, err := h.svc.DeliveryHistory(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if items == nil {
		items = []*model.DeliveryLog{}
	}
	writeJSON(ctx, xhttp.StatusOK, deliveryHistoryResponse{TransactionID: id, Items: items})
}

func (h *ReceiptHandler) ReceiptLink(ctx *xhttp.RequestCtx) {
	link, err := h.svc.ReceiptLink(ctx, pathParam(ctx, "transactionId"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, link)
}

// TrackOpen always answers with the pixel so mail clients render nothing
// broken, whatever happened to the token.
func (h *ReceiptHandler) TrackOpen(ctx *xhttp.RequestCtx) {
	token := pathParam(ctx, "token")
	if err := h.svc.TrackOpen(ctx, token); err != nil {
		logger.Debug("tracking open not recorded", "token", token, "error", err)
	}
	ctx.Response.Header.Set("Content-Type", "image/gif")
	ctx.Response.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyRaw(trackingPixel)
}
