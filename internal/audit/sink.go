// Package audit delivers audit entries off the mutation path. Emit never
// blocks and never fails the caller; delivery problems are logged and counted.
package audit

import (
	"context"
	"sync"
	"time"

	"wallet/internal/metrics"
	"wallet/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Writer persists or forwards one audit entry.
type Writer interface {
	Write(ctx context.Context, entry models.AuditLog) error
	Name() string
}

type Sink struct {
	entries      chan models.AuditLog
	writers      []Writer
	logger       *zap.Logger
	writeTimeout time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewSink(logger *zap.Logger, bufferSize int, writers ...Writer) *Sink {
	s := &Sink{
		entries:      make(chan models.AuditLog, bufferSize),
		writers:      writers,
		logger:       logger,
		writeTimeout: 5 * time.Second,
		now:          time.Now,
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

// Emit enqueues entry for delivery. A full buffer or a closed sink drops it.
func (s *Sink) Emit(entry models.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(entry, "sink closed")
		return
	}
	select {
	case s.entries <- entry:
	default:
		s.drop(entry, "buffer full")
	}
}

// Close stops accepting entries and waits for queued ones to be written or
// for ctx to end.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for entry := range s.entries {
		for _, w := range s.writers {
			s.write(w, entry)
		}
	}
}

func (s *Sink) write(w Writer, entry models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := w.Write(ctx, entry); err != nil {
		metrics.AuditEntries.WithLabelValues(w.Name(), "failed").Inc()
		s.logger.Error("audit write failed",
			zap.String("writer", w.Name()),
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.Stringer("entity_id", entry.EntityID),
			zap.Error(err),
		)
		return
	}
	metrics.AuditEntries.WithLabelValues(w.Name(), "written").Inc()
}

func (s *Sink) drop(entry models.AuditLog, reason string) {
	metrics.AuditEntries.WithLabelValues("sink", "dropped").Inc()
	s.logger.Warn("audit entry dropped",
		zap.String("reason", reason),
		zap.String("action", entry.Action),
		zap.Stringer("wallet_id", entry.WalletID),
		zap.Stringer("entity_id", entry.EntityID),
	)
}
