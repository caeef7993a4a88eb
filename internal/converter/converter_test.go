package converter

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type capturedRequest struct {
	path     string
	auth     string
	filename string
	html     string
	fields   map[string]string
}

type fakeService struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	body     []byte
}

func (s *fakeService) handle(ctx *fasthttp.RequestCtx) {
	captured := capturedRequest{
		path:   string(ctx.Path()),
		auth:   string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)),
		fields: map[string]string{},
	}
	if form, err := ctx.MultipartForm(); err == nil {
		for k, v := range form.Value {
			captured.fields[k] = v[0]
		}
		if files := form.File["files"]; len(files) > 0 {
			captured.filename = files[0].Filename
			f, err := files[0].Open()
			if err == nil {
				b, _ := io.ReadAll(f)
				captured.html = string(b)
				f.Close()
			}
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, captured)
	s.mu.Unlock()

	ctx.SetStatusCode(s.status)
	ctx.SetBody(s.body)
}

func (s *fakeService) last() capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestClient(t *testing.T, svc *fakeService, cfg Config) *Client {
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: svc.handle}
	go server.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { ln.Close() })

	httpClient := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
	}
	return NewClientWithHTTP(cfg, httpClient)
}

func testConfig() Config {
	return Config{
		URL:      "http://converter.local/",
		Username: "receipts",
		Password: "s3cret",
		Timeout:  2 * time.Second,
	}
}

func TestConvertToPDF_Success(t *testing.T) {
	svc := &fakeService{status: fasthttp.StatusOK, body: []byte("%PDF-1.7 fake")}
	client := newTestClient(t, svc, testConfig())

	pdf, err := client.ConvertToPDF(context.Background(), "<html><body>Reçu</body></html>", model.QualityStandard)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 fake"), pdf)

	got := svc.last()
	assert.Equal(t, "/forms/chromium/convert/html", got.path)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("receipts:s3cret")), got.auth)
	assert.Equal(t, "index.html", got.filename)
	assert.Equal(t, "<html><body>Reçu</body></html>", got.html)
	assert.Equal(t, "8.27", got.fields["paperWidth"])
	assert.Equal(t, "11.7", got.fields["paperHeight"])
	assert.Equal(t, "0.79", got.fields["marginTop"])
	assert.Equal(t, "0.79", got.fields["marginLeft"])
	assert.Equal(t, "true", got.fields["printBackground"])
	assert.NotContains(t, got.fields, "pdfa")
}

func TestConvertToPDF_Quality(t *testing.T) {
	svc := &fakeService{status: fasthttp.StatusOK, body: []byte("%PDF")}
	client := newTestClient(t, svc, testConfig())

	_, err := client.ConvertToPDF(context.Background(), "<html></html>", model.QualityDraft)
	require.NoError(t, err)
	assert.Equal(t, "true", svc.last().fields["skipNetworkIdleEvent"])

	_, err = client.ConvertToPDF(context.Background(), "<html></html>", model.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, "PDF/A-2b", svc.last().fields["pdfa"])
}

func TestConvertToPDF_UpstreamError(t *testing.T) {
	svc := &fakeService{status: fasthttp.StatusServiceUnavailable, body: []byte("chromium crashed")}
	client := newTestClient(t, svc, testConfig())

	_, err := client.ConvertToPDF(context.Background(), "<html></html>", model.QualityStandard)
	require.Error(t, err)

	var convErr *model.ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, fasthttp.StatusServiceUnavailable, convErr.StatusCode)
	assert.Equal(t, "chromium crashed", convErr.Body)
	assert.Len(t, svc.requests, 1)
}

func TestConvertToPDF_NotConfigured(t *testing.T) {
	client := NewClient(Config{URL: "http://converter.local"})

	_, err := client.ConvertToPDF(context.Background(), "<html></html>", model.QualityStandard)

	var cfgErr *model.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"CONVERTER_USERNAME", "CONVERTER_PASSWORD"}, cfgErr.Missing)
}

func TestPing(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		svc := &fakeService{status: fasthttp.StatusOK, body: []byte(`{"status":"up"}`)}
		client := newTestClient(t, svc, testConfig())

		require.NoError(t, client.Ping(context.Background()))
		assert.Equal(t, "/health", svc.last().path)
	})

	t.Run("unhealthy", func(t *testing.T) {
		svc := &fakeService{status: fasthttp.StatusServiceUnavailable}
		client := newTestClient(t, svc, testConfig())

		assert.Error(t, client.Ping(context.Background()))
	})
}
