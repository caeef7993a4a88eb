package main

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func convertRequest(t *testing.T, filename, html string) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("files", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(html))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("paperWidth", "8.27"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/forms/chromium/convert/html", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestConvertHTML(t *testing.T) {
	router := SetupRouter(NewHandler(NewMockConverter(0, 0)), "api", "secret")

	t.Run("returns a pdf", func(t *testing.T) {
		req := convertRequest(t, "index.html", "<html><head><title>Reçu RECU-2024-12-01-DEF456</title></head></html>")
		req.SetBasicAuth("api", "secret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-1.4")))
		assert.Contains(t, rec.Body.String(), "RECU-2024-12-01-DEF456")
		assert.NotEmpty(t, rec.Header().Get("Gotenberg-Trace"))
	})

	t.Run("requires credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, convertRequest(t, "index.html", "<html></html>"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("requires index.html", func(t *testing.T) {
		req := convertRequest(t, "page.html", "<html></html>")
		req.SetBasicAuth("api", "secret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestConvertHTML_Failure(t *testing.T) {
	router := SetupRouter(NewHandler(NewMockConverter(1, 0)), "", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, convertRequest(t, "index.html", "<html></html>"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	router := SetupRouter(NewHandler(NewMockConverter(0.25, 0)), "api", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failure_rate":0.25`)
}

func TestHTMLTitle(t *testing.T) {
	assert.Equal(t, "Reçu X", htmlTitle("<title> Reçu X </title>"))
	assert.Equal(t, "document", htmlTitle("<p>no title</p>"))
}
