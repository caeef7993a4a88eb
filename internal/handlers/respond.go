package handlers

import (
	"encoding/json"
	"errors"

	"github.com/nimasrn/receipt-gateway/internal/model"
	xhttp "github.com/nimasrn/receipt-gateway/pkg/http"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg})
}

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	writeJSON(ctx, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps the typed service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		validation *model.ValidationError
		notFound   *model.NotFoundError
		conflict   *model.ConflictError
	)
	switch {
	case err == nil:
		return xhttp.StatusOK
	case errors.As(err, &validation):
		return xhttp.StatusBadRequest
	case errors.As(err, &notFound):
		return xhttp.StatusNotFound
	case errors.As(err, &conflict):
		return xhttp.StatusConflict
	default:
		return xhttp.StatusInternalServerError
	}
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
