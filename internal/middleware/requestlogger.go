package middleware

import (
	"context"
	"log"
	"time"

	"github.com/firescope/resource-governor/internal/models"
	"github.com/firescope/resource-governor/internal/repository"
	"github.com/gin-gonic/gin"
)

const logBatchSize = 100

// Buffers request logs and flushes them to Postgres in batches so the
// hot path never waits on the database.
type RequestLogWriter struct {
	repo    *repository.RequestLogRepository
	entries chan models.RequestLog
	done    chan struct{}
}

func NewRequestLogWriter(repo *repository.RequestLogRepository, bufferSize int) *RequestLogWriter {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	w := &RequestLogWriter{
		repo:    repo,
		entries: make(chan models.RequestLog, bufferSize),
		done:    make(chan struct{}),
	}

	go w.run()
	return w
}

// Drains buffered entries on a ticker or when a full batch accumulates
func (w *RequestLogWriter) run() {
	batch := make([]models.RequestLog, 0, logBatchSize)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry := <-w.entries:
			batch = append(batch, entry)

			if len(batch) >= logBatchSize {
				w.flush(batch)
				batch = make([]models.RequestLog, 0, logBatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = make([]models.RequestLog, 0, logBatchSize)
			}
		case <-w.done:
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *RequestLogWriter) flush(batch []models.RequestLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.repo.CreateBatch(ctx, batch); err != nil {
		// Log error but dont block
		log.Printf("Failed to insert request logs: %v", err)
	}
}

// Stop flushes any remaining entries and stops the worker
func (w *RequestLogWriter) Stop() {
	close(w.done)
}

// Logs all HTTP requests
func (w *RequestLogWriter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Calculate duration
		duration := time.Since(start)

		entry := models.RequestLog{
			Timestamp:      start,
			UserID:         c.GetString("user_id"),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(duration.Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			RateLimited:    c.GetBool("rate_limited"),
		}

		// Send to channel for async processing
		select {
		case w.entries <- entry:
			// Successfully queued
		default:
			// Channel full, skip logging to avoid blocking
			log.Printf("Request log channel full, skipping log entry")
		}
	}
}
