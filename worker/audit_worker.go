package worker

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"blicktrack/models"
)

// AuditWorker persists audit events off the request path. Record never blocks
// a handler; when the buffer is full the event is written synchronously so
// nothing is dropped.
type AuditWorker struct {
	db     *gorm.DB
	logger *logrus.Logger
	events chan models.AuditLog
}

func NewAuditWorker(db *gorm.DB, logger *logrus.Logger, bufferSize int) *AuditWorker {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &AuditWorker{
		db:     db,
		logger: logger,
		events: make(chan models.AuditLog, bufferSize),
	}
}

// Record queues an audit event for asynchronous persistence
func (w *AuditWorker) Record(event models.AuditLog) {
	select {
	case w.events <- event:
	default:
		w.write(event)
	}
}

// Start consumes the queue until the context is cancelled
func (w *AuditWorker) Start(ctx context.Context) {
	w.logger.Info("audit worker started")
	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.logger.Info("audit worker stopped")
			return
		case event := <-w.events:
			w.write(event)
		}
	}
}

// Flush synchronously persists everything currently queued
func (w *AuditWorker) Flush() {
	w.drain()
}

func (w *AuditWorker) drain() {
	for {
		select {
		case event := <-w.events:
			w.write(event)
		default:
			return
		}
	}
}

func (w *AuditWorker) write(event models.AuditLog) {
	if err := w.db.Create(&event).Error; err != nil {
		w.logger.WithError(err).WithField("event_type", event.EventType).
			Error("failed to persist audit event")
	}
}
