// Package ocr wraps an external OCR engine with rate limiting, a per-call
// timeout and a circuit breaker.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/pdftext"
)

// ResilientEngine decorates a domain.OCREngine.
type ResilientEngine struct {
	engine  domain.OCREngine
	logger  *logrus.Logger
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewResilientEngine creates a new resilient OCR engine
func NewResilientEngine(engine domain.OCREngine, cfg domain.OCRConfig, logger *logrus.Logger) *ResilientEngine {
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = 1
	}
	if cfg.BreakerInterval == 0 {
		cfg.BreakerInterval = 60 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	settings := gobreaker.Settings{
		Name:        "OCREngine",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &ResilientEngine{
		engine:  engine,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.Timeout,
	}
}

// Recognize waits for a rate-limit token and runs the wrapped engine through
// the circuit breaker.
func (e *ResilientEngine) Recognize(ctx context.Context, raw []byte, mode domain.OCRMode) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ocr rate limit: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.engine.Recognize(ctx, raw, mode)
	})
	if err != nil {
		return "", fmt.Errorf("ocr recognize (adaptive=%t): %w", mode.AdaptiveThreshold, err)
	}

	return result.(string), nil
}

// State returns the breaker state name for health reporting.
func (e *ResilientEngine) State() string {
	return e.breaker.State().String()
}

// TextEngine stands in for an OCR engine on documents that already carry
// text. PDFs are read from their text layer; anything else is taken as
// UTF-8.
type TextEngine struct{}

// Recognize returns the document text. The mode is ignored.
func (TextEngine) Recognize(_ context.Context, raw []byte, _ domain.OCRMode) (string, error) {
	if bytes.HasPrefix(raw, pdfMagic) {
		return pdftext.Extract(raw)
	}
	return string(raw), nil
}

var pdfMagic = []byte("%PDF")
