package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/receipt-gateway/internal/idempotency"
	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/internal/repository"
	"github.com/nimasrn/receipt-gateway/internal/storage"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
	"github.com/nimasrn/receipt-gateway/pkg/prom"
	"github.com/shopspring/decimal"
)

const (
	checkTimeout       = 5 * time.Second
	defaultBatchSize   = 50
	defaultBatchDelay  = 2 * time.Second
	defaultClaimWindow = 10 * time.Minute
	batchUserAgent     = "batch-processor"
)

var (
	ErrMissingTransactionID = errors.New("transaction id is required")
	ErrInvalidEmail         = errors.New("donor email is missing or invalid")
)

type TransactionRepository interface {
	Get(ctx context.Context, id string) (*model.Transaction, error)
	ClaimReceipt(ctx context.Context, c model.ReceiptClaim) (bool, error)
	UpdateReceipt(ctx context.Context, id string, u model.ReceiptUpdate) error
	ListEligible(ctx context.Context, f model.EligibleFilter) ([]*model.Transaction, error)
}

type DeliveryLogRepository interface {
	Create(ctx context.Context, l *model.DeliveryLog) (*model.DeliveryLog, error)
	Update(ctx context.Context, id int64, p model.DeliveryLogPatch) (*model.DeliveryLog, error)
	MarkOpened(ctx context.Context, token string, at time.Time) (*model.DeliveryLog, error)
	ListForTransaction(ctx context.Context, transactionID string) ([]*model.DeliveryLog, error)
	CheckExists(ctx context.Context, transactionID string) (*model.ExistingDelivery, error)
	LatestObjectKey(ctx context.Context, transactionID string) (string, string, error) // receiptNumber, objectKey
	Stats(ctx context.Context, since time.Time) (*model.DeliveryStats, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (*model.AssociationSettings, error)
}

type Renderer interface {
	RenderHTML(rec *model.ReceiptRecord) (string, error)
	RenderText(rec *model.ReceiptRecord) (string, error)
	Subject(rec *model.ReceiptRecord) string
}

type Converter interface {
	ConvertToPDF(ctx context.Context, html string, quality model.Quality) ([]byte, error)
	Ping(ctx context.Context) error
}

type ObjectStore interface {
	Upload(ctx context.Context, pdf []byte, receiptNumber string) (*storage.UploadResult, error)
	ArchiveHTML(ctx context.Context, html string, receiptNumber string) (string, error)
	SignedURL(ctx context.Context, receiptNumber, objectKey string, ttl time.Duration) (string, error)
	Ping(ctx context.Context) error
}

type Mailer interface {
	Send(ctx context.Context, msg model.Mail) error
	Verify(ctx context.Context) error
}

type DBPinger interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

type ReceiptConfig struct {
	BatchSize    int
	BatchDelay   time.Duration
	MinAmount    decimal.Decimal
	ClaimTimeout time.Duration
	// delivery log rows older than this are removed after a batch run; zero keeps them
	LogRetention time.Duration
	// prefix of the tracking pixel URL, empty disables tracking
	TrackingBaseURL string
	CacheBackend    string
	// presence flags of deployment-level settings reported by Health
	Configured map[string]bool
}

type ReceiptService struct {
	transactions TransactionRepository
	deliveryLogs DeliveryLogRepository
	settings     SettingsRepository
	renderer     Renderer
	converter    Converter
	storage      ObjectStore
	mailer       Mailer
	db           DBPinger
	cache        idempotency.Cache
	config       ReceiptConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReceiptService(
	transactions TransactionRepository,
	deliveryLogs DeliveryLogRepository,
	settings SettingsRepository,
	renderer Renderer,
	converter Converter,
	objectStore ObjectStore,
	mailer Mailer,
	db DBPinger,
	cache idempotency.Cache,
	config ReceiptConfig,
) *ReceiptService {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.BatchDelay < 0 {
		config.BatchDelay = defaultBatchDelay
	}
	if config.ClaimTimeout <= 0 {
		config.ClaimTimeout = defaultClaimWindow
	}
	if config.CacheBackend == "" {
		config.CacheBackend = "memory"
	}
	return &ReceiptService{
		transactions: transactions,
		deliveryLogs: deliveryLogs,
		settings:     settings,
		renderer:     renderer,
		converter:    converter,
		storage:      objectStore,
		mailer:       mailer,
		db:           db,
		cache:        cache,
		config:       config,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ReceiptNumber returns the stored receipt number of a transaction or derives
// RECU-<creation date>-<last 6 id chars>. The result only depends on the
// transaction, so repeated runs agree.
func ReceiptNumber(tx *model.Transaction) string {
	if tx.ReceiptNumber != nil && *tx.ReceiptNumber != "" {
		return *tx.ReceiptNumber
	}
	suffix := tx.ID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("RECU-%s-%s", tx.CreatedAt.UTC().Format("2006-01-02"), strings.ToUpper(suffix))
}

func validEmail(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return false
	}
	at := strings.LastIndex(addr, "@")
	return at > 0 && at < len(addr)-1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// pipelineRun accumulates what a single GenerateAndSend call has achieved so
// far, so a failure at any step can report and persist it.
type pipelineRun struct {
	transactionID string
	receiptNumber string
	emailTo       string
	claimed       bool
	logID         int64
	objectKey     string
	pdfURL        string
	generatedAt   time.Time
	pdfGenerated  bool
	pdfStored     bool
	emailSent     bool
}

func (r *pipelineRun) result(now time.Time) *model.ReceiptResult {
	return &model.ReceiptResult{
		TransactionID: r.transactionID,
		ReceiptNumber: r.receiptNumber,
		EmailTo:       r.emailTo,
		PDFURL:        r.pdfURL,
		PDFGenerated:  r.pdfGenerated,
		PDFStored:     r.pdfStored,
		EmailSent:     r.emailSent,
		Timestamp:     now,
	}
}

var stageMessages = map[string]string{
	model.StageValidation: "Invalid receipt request",
	model.StageLookup:     "Transaction lookup failed",
	model.StageClaim:      "Receipt could not be claimed",
	model.StageRender:     "Receipt rendering failed",
	model.StageConversion: "PDF generation failed",
	model.StageStorage:    "PDF storage failed",
	model.StageDelivery:   "Email delivery failed",
	model.StageFinalize:   "Receipt finalization failed",
	model.StageInternal:   "Internal error",
}

// GenerateAndSend produces the receipt of one transaction and emails it. The
// returned result is never nil; err is set whenever result.Success is false.
func (s *ReceiptService) GenerateAndSend(ctx context.Context, req model.ReceiptRequest) (res *model.ReceiptResult, err error) {
	started := s.now()
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.Quality = req.Quality.Normalize()
	run := &pipelineRun{transactionID: req.TransactionID}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("receipt pipeline panicked", "transaction_id", req.TransactionID, "panic", r, "stack", string(debug.Stack()))
			res, err = s.fail(ctx, run, model.StageInternal, fmt.Errorf("receipt pipeline panicked: %v", r))
		}
		outcome := "success"
		switch {
		case res != nil && res.FromCache:
			outcome = "cached"
		case res != nil && res.IsExisting:
			outcome = "existing"
		case err != nil:
			outcome = "failure"
		}
		prom.AddReceiptPipelineDuration(s.now().Sub(started).Seconds(), outcome)
	}()

	if req.TransactionID == "" {
		return s.reject(run, model.StageValidation, &model.ValidationError{Field: "transactionId", Message: ErrMissingTransactionID.Error()})
	}

	key := idempotency.Key(req.TransactionID, req.Resend, req.Quality)
	if cached, ok := s.cache.Get(ctx, key); ok {
		prom.IncReceiptCacheLookup(true)
		logger.Debug("receipt served from cache", "transaction_id", req.TransactionID, "receipt_number", cached.ReceiptNumber)
		cached.FromCache = true
		return cached, nil
	}
	prom.IncReceiptCacheLookup(false)

	tx, err := s.transactions.Get(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return s.reject(run, model.StageLookup, &model.NotFoundError{Resource: "transaction", ID: req.TransactionID})
		}
		return s.reject(run, model.StageLookup, err)
	}

	run.emailTo = firstNonEmpty(req.DonatorEmail, tx.DonatorEmail)
	if !validEmail(run.emailTo) {
		return s.reject(run, model.StageValidation, &model.ValidationError{Field: "donatorEmail", Message: ErrInvalidEmail.Error()})
	}

	if !req.Resend {
		existing, err := s.deliveryLogs.CheckExists(ctx, req.TransactionID)
		if err != nil {
			logger.Warn("delivery log lookup failed, relying on receipt claim", "transaction_id", req.TransactionID, "error", err)
		} else if existing.Exists {
			res := run.result(s.now())
			res.Success = true
			res.IsExisting = true
			res.ReceiptNumber = existing.ReceiptNumber
			res.LastSent = existing.LastSent
			res.Message = "Receipt already sent"
			s.remember(ctx, key, res)
			return res, nil
		}
	}

	run.receiptNumber = ReceiptNumber(tx)
	requestedAt := s.now().UTC()
	claimed, err := s.transactions.ClaimReceipt(ctx, model.ReceiptClaim{
		TransactionID: tx.ID,
		ReceiptNumber: run.receiptNumber,
		Resend:        req.Resend,
		RequestedAt:   requestedAt,
		StaleBefore:   requestedAt.Add(-s.config.ClaimTimeout),
	})
	if err != nil {
		return s.reject(run, model.StageClaim, err)
	}
	if !claimed {
		return s.reject(run, model.StageClaim, &model.ConflictError{TransactionID: tx.ID})
	}
	run.claimed = true

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return s.fail(ctx, run, model.StageLookup, err)
	}

	trackingToken := ""
	if settings.EnableTracking && s.config.TrackingBaseURL != "" {
		trackingToken = uuid.NewString()
	}
	rec := s.record(tx, req, run, settings, trackingToken)
	subject := s.renderer.Subject(rec)

	entry, err := s.deliveryLogs.Create(ctx, &model.DeliveryLog{
		TransactionID:  tx.ID,
		RecipientEmail: run.emailTo,
		Subject:        subject,
		Status:         model.DeliveryStatusPending,
		ReceiptNumber:  run.receiptNumber,
		UserAgent:      req.UserAgent,
		TrackingToken:  trackingToken,
		Metadata: map[string]any{
			"quality": string(req.Quality),
			"resend":  req.Resend,
		},
	})
	if err != nil {
		return s.fail(ctx, run, model.StageClaim, err)
	}
	run.logID = entry.ID

	html, err := s.renderer.RenderHTML(rec)
	if err != nil {
		return s.fail(ctx, run, model.StageRender, err)
	}
	text, err := s.renderer.RenderText(rec)
	if err != nil {
		return s.fail(ctx, run, model.StageRender, err)
	}

	pdf, err := s.converter.ConvertToPDF(ctx, html, req.Quality)
	if err != nil {
		return s.fail(ctx, run, model.StageConversion, err)
	}
	run.pdfGenerated = true
	run.generatedAt = s.now().UTC()

	upload, err := s.storage.Upload(ctx, pdf, run.receiptNumber)
	if err != nil {
		return s.fail(ctx, run, model.StageStorage, err)
	}
	run.pdfStored = true
	run.objectKey = upload.ObjectKey
	run.pdfURL = upload.SignedURL

	if _, err := s.storage.ArchiveHTML(ctx, html, run.receiptNumber); err != nil {
		logger.Warn("receipt html archive failed", "receipt_number", run.receiptNumber, "error", err)
	}

	if req.ShouldSendEmail() {
		err := s.mailer.Send(ctx, model.Mail{
			To:      run.emailTo,
			ToName:  rec.DonatorName,
			Subject: subject,
			HTML:    html,
			Text:    text,
			Attachment: &model.Attachment{
				Filename:    run.receiptNumber + ".pdf",
				ContentType: "application/pdf",
				Data:        pdf,
			},
		})
		if err != nil {
			return s.fail(ctx, run, model.StageDelivery, err)
		}
		run.emailSent = true
	}

	if err := s.finalize(ctx, run); err != nil {
		return s.fail(ctx, run, model.StageFinalize, err)
	}

	res = run.result(s.now())
	res.Success = true
	if run.emailSent {
		res.Message = "Receipt generated and sent"
	} else {
		res.Message = "Receipt generated"
	}
	logger.Info("receipt processed",
		"transaction_id", tx.ID,
		"receipt_number", run.receiptNumber,
		"email_sent", run.emailSent,
		"object_key", run.objectKey,
	)
	s.remember(ctx, key, res)
	return res, nil
}

func (s *ReceiptService) record(tx *model.Transaction, req model.ReceiptRequest, run *pipelineRun, settings *model.AssociationSettings, trackingToken string) *model.ReceiptRecord {
	rec := &model.ReceiptRecord{
		ReceiptNumber:      run.receiptNumber,
		DonationDate:       tx.CreatedAt,
		DonatorName:        firstNonEmpty(req.DonatorName, tx.DonatorName),
		DonatorEmail:       run.emailTo,
		Amount:             tx.Amount,
		CalendarsGiven:     tx.CalendarsGiven,
		PaymentMethod:      tx.PaymentMethod,
		CollectorName:      firstNonEmpty(req.CollectorName, tx.CollectorName),
		TeamName:           tx.TeamName,
		AssociationName:    settings.AssociationName,
		AssociationAddress: settings.AssociationAddress,
		AssociationSIREN:   settings.AssociationSIREN,
		AssociationRNA:     settings.AssociationRNA,
		LegalText:          settings.LegalText,
		TemplateVersion:    settings.TemplateVersion,
	}
	if trackingToken != "" {
		rec.TrackingEnabled = true
		rec.TrackingURL = strings.TrimRight(s.config.TrackingBaseURL, "/") + "/" + trackingToken
	}
	return rec
}

// finalize records the outcome of a successful run on the delivery log and
// the transaction.
func (s *ReceiptService) finalize(ctx context.Context, run *pipelineRun) error {
	patch := model.DeliveryLogPatch{PDFObjectKey: &run.objectKey, At: s.now().UTC()}
	status := model.ReceiptStatusGenerated
	if run.emailSent {
		sent := model.DeliveryStatusSent
		patch.Status = &sent
		status = model.ReceiptStatusSent
	} else {
		skipped := model.DeliveryStatusSkipped
		patch.Status = &skipped
		patch.Metadata = map[string]any{"email_skipped": true}
	}
	if _, err := s.deliveryLogs.Update(ctx, run.logID, patch); err != nil {
		logger.Warn("delivery log finalization failed", "log_id", run.logID, "receipt_number", run.receiptNumber, "error", err)
	}

	return s.transactions.UpdateReceipt(ctx, run.transactionID, model.ReceiptUpdate{
		Status:      status,
		GeneratedAt: &run.generatedAt,
		PDFURL:      &run.pdfURL,
	})
}

// reject reports a failure that happened before the receipt claim, so there
// is nothing to roll back.
func (s *ReceiptService) reject(run *pipelineRun, stage string, cause error) (*model.ReceiptResult, error) {
	logger.Warn("receipt request rejected", "transaction_id", run.transactionID, "stage", stage, "error", cause)
	res := run.result(s.now())
	res.Stage = stage
	res.Error = stageMessages[stage]
	res.Details = cause.Error()
	return res, cause
}

// fail marks the delivery log and the transaction failed and reports what
// was achieved before the failing step.
func (s *ReceiptService) fail(ctx context.Context, run *pipelineRun, stage string, cause error) (*model.ReceiptResult, error) {
	logger.Error("receipt pipeline failed",
		"transaction_id", run.transactionID,
		"receipt_number", run.receiptNumber,
		"stage", stage,
		"error", cause,
	)
	prom.IncReceiptStageFailure(stage)

	// bookkeeping must survive a cancelled request
	ctx = context.WithoutCancel(ctx)
	at := s.now().UTC()

	if run.logID != 0 {
		failed := model.DeliveryStatusFailed
		msg := cause.Error()
		patch := model.DeliveryLogPatch{Status: &failed, ErrorMessage: &msg, At: at}
		if run.objectKey != "" {
			patch.PDFObjectKey = &run.objectKey
		}
		if _, err := s.deliveryLogs.Update(ctx, run.logID, patch); err != nil {
			logger.Warn("delivery log failure update failed", "log_id", run.logID, "error", err)
		}
	}

	if run.claimed {
		update := model.ReceiptUpdate{Status: model.ReceiptStatusFailed}
		if run.pdfURL != "" {
			update.PDFURL = &run.pdfURL
			update.GeneratedAt = &run.generatedAt
		}
		if err := s.transactions.UpdateReceipt(ctx, run.transactionID, update); err != nil {
			logger.Warn("receipt status failure update failed", "transaction_id", run.transactionID, "error", err)
		}
	}

	res := run.result(s.now())
	res.Stage = stage
	res.Error = stageMessages[stage]
	res.Details = cause.Error()
	return res, cause
}

func (s *ReceiptService) remember(ctx context.Context, key string, res *model.ReceiptResult) {
	s.cache.Put(ctx, key, res)
	prom.SetReceiptCacheEntries(s.cache.Stats(ctx).Size, s.config.CacheBackend)
}

// ProcessPending sends receipts for transactions that never had one, one at a
// time. A failing item does not stop the run; a cancelled context does.
func (s *ReceiptService) ProcessPending(ctx context.Context) (*model.BatchResult, error) {
	txs, err := s.transactions.ListEligible(ctx, model.EligibleFilter{
		MinAmount: s.config.MinAmount,
		Limit:     s.config.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	result := &model.BatchResult{Details: make([]model.BatchItem, 0, len(txs))}
	for i, tx := range txs {
		if i > 0 {
			if err := s.sleep(ctx, s.config.BatchDelay); err != nil {
				result.Interrupted = true
				break
			}
		}

		res, err := s.GenerateAndSend(ctx, model.ReceiptRequest{
			TransactionID: tx.ID,
			Quality:       model.QualityStandard,
			UserAgent:     batchUserAgent,
		})
		item := model.BatchItem{
			TransactionID: tx.ID,
			Success:       err == nil && res.Success,
			ReceiptNumber: res.ReceiptNumber,
		}
		result.Processed++
		if item.Success {
			result.Succeeded++
			prom.IncReceiptBatchItem("success")
		} else {
			result.Failed++
			item.Error = res.Error
			if res.Details != "" {
				item.Error = res.Details
			}
			prom.IncReceiptBatchItem("failure")
		}
		result.Details = append(result.Details, item)
	}

	logger.Info("receipt batch finished",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"interrupted", result.Interrupted,
	)

	if s.config.LogRetention > 0 {
		before := s.now().UTC().Add(-s.config.LogRetention)
		removed, err := s.deliveryLogs.DeleteOlderThan(context.WithoutCancel(ctx), before)
		if err != nil {
			logger.Warn("delivery log cleanup failed", "before", before, "error", err)
		} else if removed > 0 {
			logger.Info("delivery log cleanup", "removed", removed, "before", before)
		}
	}

	return result, nil
}

// Health checks every collaborator independently. It never touches
// transaction state.
func (s *ReceiptService) Health(ctx context.Context) (report *model.HealthReport) {
	report = &model.HealthReport{
		Checks:        make(map[string]model.CheckResult),
		Configuration: make(map[string]bool),
		Timestamp:     s.now(),
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("health report panicked", "panic", r)
			report = &model.HealthReport{
				Status:    model.HealthError,
				Error:     fmt.Sprintf("%v", r),
				Timestamp: s.now(),
			}
		}
	}()

	checks := map[string]func(ctx context.Context) error{
		"converter": s.converter.Ping,
		"storage":   s.storage.Ping,
		"email":     s.mailer.Verify,
		"database": func(ctx context.Context) error {
			return s.db.Ping(ctx, checkTimeout)
		},
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check func(ctx context.Context) error) {
			defer wg.Done()
			pr := s.runCheck(ctx, check)
			mu.Lock()
			report.Checks[name] = pr
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	report.Status = model.HealthHealthy
	for name, pr := range report.Checks {
		if !pr.OK {
			report.Status = model.HealthDegraded
			logger.Warn("health check failed", "check", name, "error", pr.Error)
		}
	}

	report.Cache = s.cache.Stats(ctx)

	if stats, err := s.deliveryLogs.Stats(ctx, s.now().UTC().Add(-24*time.Hour)); err != nil {
		logger.Warn("delivery stats unavailable", "error", err)
	} else {
		report.Deliveries24h = stats
	}

	for k, v := range s.config.Configured {
		report.Configuration[k] = v
	}
	if settings, err := s.settings.Get(ctx); err == nil {
		report.Configuration["smtp"] = len(settings.MissingSMTP()) == 0
		report.Configuration["tracking"] = settings.EnableTracking && s.config.TrackingBaseURL != ""
	} else {
		report.Configuration["smtp"] = false
	}

	return report
}

func (s *ReceiptService) runCheck(ctx context.Context, fn func(ctx context.Context) error) (pr model.CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			pr = model.CheckResult{Error: fmt.Sprintf("check panicked: %v", r)}
		}
		pr.LatencyMs = s.now().Sub(start).Milliseconds()
	}()

	if err := fn(ctx); err != nil {
		return model.CheckResult{Error: err.Error()}
	}
	return model.CheckResult{OK: true}
}

// ClearCache drops every cached result when force is set, otherwise only the
// expired ones.
func (s *ReceiptService) ClearCache(ctx context.Context, force bool) *model.CacheClearResult {
	var cleared int
	if force {
		cleared = s.cache.Clear(ctx)
	} else {
		cleared = s.cache.Prune(ctx)
	}
	remaining := s.cache.Stats(ctx).Size
	prom.SetReceiptCacheEntries(remaining, s.config.CacheBackend)
	logger.Info("receipt cache cleared", "force", force, "cleared", cleared, "remaining", remaining)

	return &model.CacheClearResult{
		Success:        true,
		ItemsCleared:   cleared,
		RemainingItems: remaining,
	}
}

// DeliveryHistory lists the delivery attempts of a transaction, newest first.
func (s *ReceiptService) DeliveryHistory(ctx context.Context, transactionID string) ([]*model.DeliveryLog, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, &model.ValidationError{Field: "transactionId", Message: ErrMissingTransactionID.Error()}
	}
	return s.deliveryLogs.ListForTransaction(ctx, transactionID)
}

// TrackOpen records that the email carrying token was opened. Opens of
// entries that can no longer move to opened are ignored.
func (s *ReceiptService) TrackOpen(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return &model.ValidationError{Field: "token", Message: "tracking token is required"}
	}
	entry, err := s.deliveryLogs.MarkOpened(ctx, token, s.now().UTC())
	switch {
	case errors.Is(err, repository.ErrDeliveryLogNotFound):
		return &model.NotFoundError{Resource: "delivery log", ID: token}
	case errors.Is(err, repository.ErrInvalidTransition):
		return nil
	case err != nil:
		return err
	}
	logger.Debug("receipt opened", "log_id", entry.ID, "receipt_number", entry.ReceiptNumber)
	return nil
}

// ReceiptLink issues a short-lived link to the latest stored PDF of a
// transaction.
func (s *ReceiptService) ReceiptLink(ctx context.Context, transactionID string) (*model.ReceiptLink, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, &model.ValidationError{Field: "transactionId", Message: ErrMissingTransactionID.Error()}
	}

	number, key, err := s.deliveryLogs.LatestObjectKey(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if number == "" {
		tx, err := s.transactions.Get(ctx, transactionID)
		if err != nil {
			if errors.Is(err, repository.ErrTransactionNotFound) {
				return nil, &model.NotFoundError{Resource: "transaction", ID: transactionID}
			}
			return nil, err
		}
		if tx.ReceiptNumber == nil || *tx.ReceiptNumber == "" {
			return nil, &model.NotFoundError{Resource: "receipt", ID: transactionID}
		}
		number = *tx.ReceiptNumber
	}

	url, err := s.storage.SignedURL(ctx, number, key, storage.InternalURLTTL)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, &model.NotFoundError{Resource: "receipt", ID: number}
		}
		return nil, err
	}

	return &model.ReceiptLink{
		TransactionID: transactionID,
		ReceiptNumber: number,
		URL:           url,
		ExpiresAt:     s.now().UTC().Add(storage.InternalURLTTL),
	}, nil
}
