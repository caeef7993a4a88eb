package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxHTMLSize = 5 << 20

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	ConverterID string    `json:"converter_id"`
	Timestamp   time.Time `json:"timestamp"`
	FailureRate float64   `json:"failure_rate"`
}

// MockConverter stands in for the HTML to PDF rendering service in local and
// end-to-end setups. It accepts the same multipart form and answers with a
// small but well formed PDF.
type MockConverter struct {
	mu          sync.Mutex
	failureRate float64
	delay       time.Duration
	converterID string
	rng         *rand.Rand
}

func NewMockConverter(failureRate float64, delay time.Duration) *MockConverter {
	return &MockConverter{
		failureRate: failureRate,
		delay:       delay,
		converterID: "MOCK_CONVERTER_" + uuid.New().String()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockConverter) shouldFail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.failureRate
}

func (m *MockConverter) setFailureRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureRate = rate
}

func (m *MockConverter) rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failureRate
}

// renderPDF builds a one page PDF whose only text is the document title.
func renderPDF(title string) []byte {
	title = strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(title)
	stream := fmt.Sprintf("BT /F1 18 Tf 72 770 Td (%s) Tj ET", title)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func htmlTitle(html string) string {
	start := strings.Index(html, "<title>")
	end := strings.Index(html, "</title>")
	if start < 0 || end <= start {
		return "document"
	}
	return strings.TrimSpace(html[start+len("<title>") : end])
}

// Handler struct holds the mock converter and routes
type Handler struct {
	converter *MockConverter
}

func NewHandler(converter *MockConverter) *Handler {
	return &Handler{converter: converter}
}

// ConvertHTML handles the multipart conversion request
func (h *Handler) ConvertHTML(c *gin.Context) {
	file, err := c.FormFile("files")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if file.Filename != "index.html" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index.html is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	html, err := io.ReadAll(io.LimitReader(f, maxHTMLSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	docID := uuid.New().String()
	log.Info().
		Str("document_id", docID).
		Int("html_bytes", len(html)).
		Str("paper_width", c.PostForm("paperWidth")).
		Str("pdfa", c.PostForm("pdfa")).
		Msg("Received conversion request")

	if h.converter.delay > 0 {
		time.Sleep(h.converter.delay)
	}

	if h.converter.shouldFail() {
		log.Warn().Str("document_id", docID).Msg("Conversion failed")
		c.String(http.StatusServiceUnavailable, "chromium is busy")
		return
	}

	c.Header("Gotenberg-Trace", docID)
	c.Data(http.StatusOK, "application/pdf", renderPDF(htmlTitle(string(html))))
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "up",
		ConverterID: h.converter.converterID,
		Timestamp:   time.Now(),
		FailureRate: h.converter.rate(),
	})
}

// UpdateConfig allows changing converter behaviour at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		FailureRate *float64 `json:"failure_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.FailureRate != nil && *config.FailureRate >= 0 && *config.FailureRate <= 1.0 {
		h.converter.setFailureRate(*config.FailureRate)
		log.Info().Float64("rate", *config.FailureRate).Msg("Updated failure rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Configuration updated",
		"failure_rate": h.converter.rate(),
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler, username, password string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	router.GET("/health", handler.HealthCheck)

	forms := router.Group("/forms")
	if username != "" {
		forms.Use(gin.BasicAuth(gin.Accounts{username: password}))
	}
	forms.POST("/chromium/convert/html", handler.ConvertHTML)

	router.PUT("/config", handler.UpdateConfig)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "3000")
	username := getEnv("CONVERTER_USERNAME", "")
	password := getEnv("CONVERTER_PASSWORD", "")
	failureRate := getEnvFloat("FAILURE_RATE", 0)
	delay := getEnvDuration("DELAY", 200*time.Millisecond)

	log.Info().
		Str("port", port).
		Bool("basic_auth", username != "").
		Float64("failure_rate", failureRate).
		Dur("delay", delay).
		Msg("Starting mock PDF converter")

	handler := NewHandler(NewMockConverter(failureRate, delay))
	router := SetupRouter(handler, username, password)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
