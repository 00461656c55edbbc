package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"blicktrack/models"
)

func newTestWorker(t *testing.T, bufferSize int) *AuditWorker {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewAuditWorker(db, l, bufferSize)
}

func TestRecordAndFlush(t *testing.T) {
	w := newTestWorker(t, 16)

	for i := 0; i < 5; i++ {
		w.Record(models.AuditLog{
			EventType: models.EventUserCreated,
			Action:    "user created",
			Severity:  models.SeverityMedium,
		})
	}
	w.Flush()

	var count int64
	w.db.Model(&models.AuditLog{}).Count(&count)
	if count != 5 {
		t.Errorf("persisted %d events, want 5", count)
	}
}

func TestRecordNeverDropsWhenBufferFull(t *testing.T) {
	// Buffer of one forces the synchronous fallback path
	w := newTestWorker(t, 1)

	for i := 0; i < 10; i++ {
		w.Record(models.AuditLog{
			EventType: models.EventLogin,
			Action:    "signed in",
			Severity:  models.SeverityLow,
		})
	}
	w.Flush()

	var count int64
	w.db.Model(&models.AuditLog{}).Count(&count)
	if count != 10 {
		t.Errorf("persisted %d events, want 10", count)
	}
}

func TestStartDrainsOnCancel(t *testing.T) {
	w := newTestWorker(t, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	w.Record(models.AuditLog{EventType: models.EventLogout, Action: "signed out"})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	w.Flush()
	var count int64
	w.db.Model(&models.AuditLog{}).Count(&count)
	if count != 1 {
		t.Errorf("persisted %d events, want 1", count)
	}
}
