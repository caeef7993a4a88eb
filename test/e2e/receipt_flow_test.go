package e2e

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fasthttp/router"
	"github.com/nimasrn/receipt-gateway/internal/converter"
	"github.com/nimasrn/receipt-gateway/internal/handlers"
	"github.com/nimasrn/receipt-gateway/internal/idempotency"
	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/internal/repository"
	"github.com/nimasrn/receipt-gateway/internal/services"
	"github.com/nimasrn/receipt-gateway/internal/storage"
	"github.com/nimasrn/receipt-gateway/internal/template"
	"github.com/nimasrn/receipt-gateway/pkg/pg"
	"github.com/nimasrn/receipt-gateway/test/fixtures"
	"github.com/nimasrn/receipt-gateway/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"gorm.io/gorm"
)

const (
	converterUser     = "api"
	converterPassword = "secret"
	baseURL           = "http://receipts.test/api/v1"
)

type TestEnvironment struct {
	DB          *pg.DB
	RawDB       *gorm.DB
	Redis       *miniredis.Miniredis
	Bucket      *helpers.MemoryBucket
	Mailer      *helpers.RecordingMailer
	Service     *services.ReceiptService
	Conversions int

	client      *fasthttp.Client
	apiLn       *fasthttputil.InmemoryListener
	converterLn *fasthttputil.InmemoryListener
	servers     []*fasthttp.Server
}

// fakeConverter answers like the Chromium HTML route: basic auth, a multipart
// "files" field named index.html and a PDF body.
func (env *TestEnvironment) fakeConverter(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/health":
		ctx.SetStatusCode(fasthttp.StatusOK)
		return
	case "/forms/chromium/convert/html":
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(converterUser+":"+converterPassword))
	if string(ctx.Request.Header.Peek("Authorization")) != want {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}
	form, err := ctx.MultipartForm()
	if err != nil || len(form.File["files"]) != 1 || form.File["files"][0].Filename != "index.html" {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	f, err := form.File["files"][0].Open()
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	defer f.Close()
	html, _ := io.ReadAll(f)

	env.Conversions++
	ctx.SetContentType("application/pdf")
	ctx.SetBody(append([]byte("%PDF-1.4\n"), html[:min(len(html), 64)]...))
}

func serve(env *TestEnvironment, handler fasthttp.RequestHandler) *fasthttputil.InmemoryListener {
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	env.servers = append(env.servers, srv)
	go func() {
		_ = srv.Serve(ln)
	}()
	return ln
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db, rawDB := helpers.SetupTestDB(t)
	mr, adapter := helpers.SetupTestRedis(t)

	env := &TestEnvironment{
		DB:     db,
		RawDB:  rawDB,
		Redis:  mr,
		Bucket: helpers.NewMemoryBucket(),
		Mailer: &helpers.RecordingMailer{},
	}

	require.NoError(t, rawDB.Create(&fixtures.TestCollector).Error)
	require.NoError(t, rawDB.Create(&fixtures.TestTeam).Error)
	helpers.CreateTestSettings(t, rawDB, fixtures.TestSettings())

	env.converterLn = serve(env, env.fakeConverter)
	pdfClient := converter.NewClientWithHTTP(converter.Config{
		URL:      "http://converter.test",
		Username: converterUser,
		Password: converterPassword,
		Timeout:  5 * time.Second,
	}, &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return env.converterLn.Dial() },
	})

	store := storage.NewWithClients(storage.Config{
		Bucket:      "receipts",
		ArchiveHTML: true,
	}, env.Bucket, helpers.Presigner{})

	env.Service = services.NewReceiptService(
		repository.NewTransactionRepository(db),
		repository.NewDeliveryLogRepository(db),
		repository.NewSettingsRepository(db),
		template.NewRenderer(),
		pdfClient,
		store,
		env.Mailer,
		db,
		idempotency.NewRedisCache(adapter, idempotency.DefaultTTL, idempotency.DefaultMaxEntries),
		services.ReceiptConfig{
			BatchDelay:      0,
			TrackingBaseURL: baseURL + "/receipts/open",
			CacheBackend:    "redis",
			Configured: map[string]bool{
				"converter_url":         true,
				"converter_credentials": true,
				"storage_bucket":        true,
				"storage_credentials":   true,
			},
		},
	)

	r := router.New()
	api := r.Group("/api/v1")
	handlers.RegisterReceiptRoutes(api, handlers.NewReceiptHandler(env.Service))
	handlers.RegisterHealthRoutes(api, handlers.NewHealthHandler(db))
	env.apiLn = serve(env, r.Handler)

	env.client = &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return env.apiLn.Dial() },
	}
	return env
}

func (env *TestEnvironment) Cleanup() {
	for _, srv := range env.servers {
		_ = srv.Shutdown()
	}
	env.Redis.Close()
}

func (env *TestEnvironment) do(t *testing.T, method, path string, body any) (int, []byte) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetUserAgent("e2e")
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}

	require.NoError(t, env.client.DoTimeout(req, resp, 10*time.Second))
	return resp.StatusCode(), append([]byte(nil), resp.Body()...)
}

func decode[T any](t *testing.T, body []byte) T {
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestE2E_GenerateAndDeliverReceipt(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestTransaction(t, env.DB, fixtures.CashDonation("abc123def456"))
	number := "RECU-2024-12-01-DEF456"

	status, body := env.do(t, "POST", "/receipts", map[string]any{"transactionId": "abc123def456"})
	require.Equal(t, 200, status, string(body))
	res := decode[model.ReceiptResult](t, body)
	assert.True(t, res.Success)
	assert.Equal(t, number, res.ReceiptNumber)
	assert.Equal(t, "jean.dupont@gmail.com", res.EmailTo)
	assert.True(t, res.PDFGenerated)
	assert.True(t, res.PDFStored)
	assert.True(t, res.EmailSent)
	assert.Contains(t, res.PDFURL, number+".pdf")

	var pdfKey string
	for _, key := range env.Bucket.Keys() {
		if strings.HasSuffix(key, number+".pdf") {
			pdfKey = key
		}
	}
	require.NotEmpty(t, pdfKey, "pdf uploaded")
	stored, _ := env.Bucket.Object(pdfKey)
	assert.True(t, bytes.HasPrefix(stored, []byte("%PDF")))

	sent := env.Mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "jean.dupont@gmail.com", sent[0].To)
	assert.Contains(t, sent[0].Subject, number)
	require.NotNil(t, sent[0].Attachment)
	assert.Equal(t, number+".pdf", sent[0].Attachment.Filename)
	assert.Equal(t, stored, sent[0].Attachment.Data)

	var txn repository.TransactionEntity
	require.NoError(t, env.RawDB.First(&txn, "id = ?", "abc123def456").Error)
	require.NotNil(t, txn.ReceiptStatus)
	assert.Equal(t, string(model.ReceiptStatusSent), *txn.ReceiptStatus)
	require.NotNil(t, txn.ReceiptNumber)
	assert.Equal(t, number, *txn.ReceiptNumber)

	// repeated request is answered from the cache
	status, body = env.do(t, "POST", "/receipts", map[string]any{"transactionId": "abc123def456"})
	require.Equal(t, 200, status)
	assert.True(t, decode[model.ReceiptResult](t, body).FromCache)
	assert.Equal(t, 1, env.Conversions)
	assert.Len(t, env.Mailer.Sent(), 1)

	// after a forced clear the delivery log answers
	status, _ = env.do(t, "DELETE", "/receipts/cache?force=true", nil)
	require.Equal(t, 200, status)
	status, body = env.do(t, "POST", "/receipts", map[string]any{"transactionId": "abc123def456"})
	require.Equal(t, 200, status)
	again := decode[model.ReceiptResult](t, body)
	assert.True(t, again.IsExisting)
	assert.Equal(t, number, again.ReceiptNumber)
	assert.Equal(t, 1, env.Conversions)

	// a resend goes through the whole pipeline again
	status, body = env.do(t, "POST", "/receipts", map[string]any{"transactionId": "abc123def456", "resend": true})
	require.Equal(t, 200, status, string(body))
	assert.True(t, decode[model.ReceiptResult](t, body).EmailSent)
	assert.Equal(t, 2, env.Conversions)
	assert.Len(t, env.Mailer.Sent(), 2)
}

func TestE2E_DeliveryHistoryTrackingAndLink(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestTransaction(t, env.DB, fixtures.CheckDonation("fff000aaa111"))
	status, body := env.do(t, "POST", "/receipts", map[string]any{"transactionId": "fff000aaa111"})
	require.Equal(t, 200, status, string(body))

	status, body = env.do(t, "GET", "/receipts/logs/fff000aaa111", nil)
	require.Equal(t, 200, status)
	history := decode[struct {
		TransactionID string               `json:"transactionId"`
		Items         []*model.DeliveryLog `json:"items"`
	}](t, body)
	require.Len(t, history.Items, 1)
	assert.Equal(t, model.DeliveryStatusSent, history.Items[0].Status)
	assert.NotEmpty(t, history.Items[0].PDFObjectKey)

	var entity repository.DeliveryLogEntity
	require.NoError(t, env.RawDB.First(&entity, "transaction_id = ?", "fff000aaa111").Error)
	require.NotNil(t, entity.TrackingToken)
	assert.Contains(t, env.Mailer.Sent()[0].HTML, *entity.TrackingToken)

	status, body = env.do(t, "GET", "/receipts/open/"+*entity.TrackingToken, nil)
	assert.Equal(t, 200, status)
	assert.True(t, bytes.HasPrefix(body, []byte("GIF89a")))

	require.NoError(t, env.RawDB.First(&entity, entity.ID).Error)
	assert.Equal(t, string(model.DeliveryStatusOpened), entity.Status)
	assert.NotNil(t, entity.OpenedAt)

	// unknown tokens still get the pixel
	status, _ = env.do(t, "GET", "/receipts/open/unknown", nil)
	assert.Equal(t, 200, status)

	status, body = env.do(t, "GET", "/receipts/link/fff000aaa111", nil)
	require.Equal(t, 200, status, string(body))
	link := decode[model.ReceiptLink](t, body)
	assert.Equal(t, "RECU-2024-12-01-AAA111", link.ReceiptNumber)
	assert.Contains(t, link.URL, *entity.PDFObjectKey)
	assert.Contains(t, link.URL, "X-Amz-Expires=3600")
}

func TestE2E_BatchProcessing(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestTransaction(t, env.DB, fixtures.CashDonation("batch0000001"))
	helpers.CreateTestTransaction(t, env.DB, fixtures.CheckDonation("batch0000002"))
	helpers.CreateTestTransaction(t, env.DB, fixtures.AnonymousDonation("batch0000003"))

	status, body := env.do(t, "POST", "/receipts/batch", nil)
	require.Equal(t, 200, status, string(body))
	res := decode[model.BatchResult](t, body)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, env.Mailer.Sent(), 2)

	status, body = env.do(t, "POST", "/receipts/batch", nil)
	require.Equal(t, 200, status)
	assert.Equal(t, 0, decode[model.BatchResult](t, body).Processed)
}

func TestE2E_Rejections(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestTransaction(t, env.DB, fixtures.AnonymousDonation("anon00000001"))

	status, _ := env.do(t, "POST", "/receipts", map[string]any{"transactionId": ""})
	assert.Equal(t, 400, status)

	status, _ = env.do(t, "POST", "/receipts", map[string]any{"transactionId": "missing"})
	assert.Equal(t, 404, status)

	for _, email := range fixtures.InvalidEmails {
		status, _ = env.do(t, "POST", "/receipts", map[string]any{
			"transactionId": "anon00000001",
			"donatorInfo":   map[string]any{"email": email},
		})
		assert.Equal(t, 400, status, email)
	}

	// a donation without any address is rendered and stored but not mailed
	status, body := env.do(t, "POST", "/receipts", map[string]any{
		"transactionId": "anon00000001",
		"options":       map[string]any{"sendEmail": false},
	})
	require.Equal(t, 200, status, string(body))
	res := decode[model.ReceiptResult](t, body)
	assert.True(t, res.PDFStored)
	assert.False(t, res.EmailSent)
	assert.Empty(t, env.Mailer.Sent())
}

func TestE2E_RequestOverrides(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestTransaction(t, env.DB, fixtures.CashDonation("abc123def456"))
	helpers.CreateTestTransaction(t, env.DB, fixtures.AnonymousDonation("anon00000002"))

	// sendEmail=false in options suppresses delivery even with an address on file
	status, body := env.do(t, "POST", "/receipts", map[string]any{
		"transactionId": "abc123def456",
		"donatorInfo":   map[string]any{"email": "jean@example.com"},
		"options":       map[string]any{"quality": "high", "sendEmail": false},
	})
	require.Equal(t, 200, status, string(body))
	res := decode[model.ReceiptResult](t, body)
	assert.True(t, res.Success)
	assert.True(t, res.PDFStored)
	assert.False(t, res.EmailSent)
	assert.Empty(t, env.Mailer.Sent())

	var txn repository.TransactionEntity
	require.NoError(t, env.RawDB.First(&txn, "id = ?", "abc123def456").Error)
	assert.Equal(t, string(model.ReceiptStatusGenerated), *txn.ReceiptStatus)

	var logEntry repository.DeliveryLogEntity
	require.NoError(t, env.RawDB.First(&logEntry, "transaction_id = ?", "abc123def456").Error)
	assert.Equal(t, string(model.DeliveryStatusSkipped), logEntry.Status)
	assert.Equal(t, "high", logEntry.Metadata["quality"])
	assert.Equal(t, true, logEntry.Metadata["email_skipped"])

	// the donor address from the request reaches a transaction without one
	status, body = env.do(t, "POST", "/receipts", map[string]any{
		"transactionId": "anon00000002",
		"donatorInfo":   map[string]any{"name": "Paul Durand", "email": "paul.durand@orange.fr"},
		"sapeurInfo":    map[string]any{"name": "Marie Martin"},
	})
	require.Equal(t, 200, status, string(body))
	res = decode[model.ReceiptResult](t, body)
	assert.True(t, res.EmailSent)
	assert.Equal(t, "paul.durand@orange.fr", res.EmailTo)

	sent := env.Mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "paul.durand@orange.fr", sent[0].To)
	assert.Contains(t, sent[0].HTML, "Paul Durand")
	assert.Contains(t, sent[0].HTML, "Marie Martin")
}

func TestE2E_EmailFailureMarksTransactionFailed(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestTransaction(t, env.DB, fixtures.CashDonation("fail00000001"))
	env.Mailer.SendErr = &model.DeliveryError{Recipient: "jean.dupont@gmail.com", Err: errors.New("535 authentication failed")}

	status, body := env.do(t, "POST", "/receipts", map[string]any{"transactionId": "fail00000001"})
	assert.Equal(t, 500, status)
	res := decode[model.ReceiptResult](t, body)
	assert.False(t, res.Success)
	assert.True(t, res.PDFStored)
	assert.Equal(t, model.StageDelivery, res.Stage)

	var txn repository.TransactionEntity
	require.NoError(t, env.RawDB.First(&txn, "id = ?", "fail00000001").Error)
	assert.Equal(t, string(model.ReceiptStatusFailed), *txn.ReceiptStatus)
	assert.NotNil(t, txn.ReceiptPDFURL)

	// failures are not cached, a retry succeeds once the mailer recovers
	env.Mailer.SendErr = nil
	status, body = env.do(t, "POST", "/receipts", map[string]any{"transactionId": "fail00000001"})
	require.Equal(t, 200, status, string(body))
	assert.True(t, decode[model.ReceiptResult](t, body).EmailSent)
}

func TestE2E_Health(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	status, body := env.do(t, "GET", "/receipts/health", nil)
	require.Equal(t, 200, status, string(body))
	report := decode[model.HealthReport](t, body)
	assert.Equal(t, model.HealthHealthy, report.Status)
	for _, name := range []string{"converter", "storage", "email", "database"} {
		assert.True(t, report.Checks[name].OK, name)
	}
	assert.True(t, report.Configuration["smtp"])
	assert.True(t, report.Configuration["tracking"])

	status, body = env.do(t, "GET", "/ready", nil)
	assert.Equal(t, 200, status, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, env.DB.Ping(ctx, time.Second))
}
