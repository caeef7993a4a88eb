package converter

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
	"github.com/samber/lo"
	"github.com/valyala/fasthttp"
)

const (
	convertPath = "/forms/chromium/convert/html"
	healthPath  = "/health"

	// PingTimeout bounds the health check.
	PingTimeout = 5 * time.Second

	maxErrorBody = 512
)

// A4 with 20mm margins, in inches.
var pageOptions = map[string]string{
	"paperWidth":      "8.27",
	"paperHeight":     "11.7",
	"marginTop":       "0.79",
	"marginBottom":    "0.79",
	"marginLeft":      "0.79",
	"marginRight":     "0.79",
	"printBackground": "true",
}

type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// Client converts HTML documents to PDF through a Chromium based rendering
// service. It never retries.
type Client struct {
	config Config
	client *fasthttp.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return NewClientWithHTTP(cfg, &fasthttp.Client{
		Name:                "receipt-gateway",
		MaxConnsPerHost:     16,
		ReadTimeout:         cfg.Timeout,
		WriteTimeout:        cfg.Timeout,
		MaxIdleConnDuration: 30 * time.Second,
		MaxResponseBodySize: 20 << 20,
	})
}

func NewClientWithHTTP(cfg Config, client *fasthttp.Client) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{
		config: cfg,
		client: client,
	}
}

func (c *Client) configured() error {
	var missing []string
	if c.config.URL == "" {
		missing = append(missing, "CONVERTER_URL")
	}
	if c.config.Username == "" {
		missing = append(missing, "CONVERTER_USERNAME")
	}
	if c.config.Password == "" {
		missing = append(missing, "CONVERTER_PASSWORD")
	}
	if len(missing) > 0 {
		return &model.ConfigurationError{Component: "converter", Missing: missing}
	}
	return nil
}

// Options returns the form fields sent for a quality level.
func Options(quality model.Quality) map[string]string {
	opts := make(map[string]string, len(pageOptions)+1)
	for k, v := range pageOptions {
		opts[k] = v
	}
	switch quality.Normalize() {
	case model.QualityDraft:
		opts["skipNetworkIdleEvent"] = "true"
	case model.QualityHigh:
		opts["pdfa"] = "PDF/A-2b"
	}
	return opts
}

// ConvertToPDF renders html into a PDF document.
func (c *Client) ConvertToPDF(ctx context.Context, html string, quality model.Quality) ([]byte, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &model.ConversionError{Err: err}
	}

	body, contentType, err := buildForm(html, Options(quality))
	if err != nil {
		return nil, &model.ConversionError{Err: err}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL + convertPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.Header.Set(fasthttp.HeaderAuthorization, c.basicAuth())
	req.SetBody(body)

	start := time.Now()
	if err := c.client.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return nil, &model.ConversionError{Err: fmt.Errorf("request failed: %w", err)}
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode >= 300 {
		respBody := resp.Body()
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &model.ConversionError{StatusCode: statusCode, Body: string(respBody)}
	}

	pdf := make([]byte, len(resp.Body()))
	copy(pdf, resp.Body())

	logger.Debug("html converted to pdf", "quality", string(quality.Normalize()), "bytes", len(pdf), "latency_ms", time.Since(start).Milliseconds())
	return pdf, nil
}

// Ping checks the rendering service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.configured(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL + healthPath)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAuthorization, c.basicAuth())

	if err := c.client.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return fmt.Errorf("converter health request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("converter health returned status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	return deadline
}

func (c *Client) basicAuth() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.config.Username + ":" + c.config.Password))
	return "Basic " + token
}

func buildForm(html string, opts map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="files"; filename="index.html"`)
	h.Set("Content-Type", "text/html; charset=utf-8")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write([]byte(html)); err != nil {
		return nil, "", err
	}

	keys := lo.Keys(opts)
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, opts[k]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
