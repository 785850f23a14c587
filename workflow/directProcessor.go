package workflow

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDirectProcessor consumes unprocessed outbox records straight from the
// database. It is the only consumer when no broker is configured and a safety
// net otherwise.
type OutboxDirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
	// MinAge leaves fresh records to the broker consumer.
	MinAge time.Duration

	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func NewOutboxDirectProcessor(db *gorm.DB, logger *logrus.Logger) *OutboxDirectProcessor {
	p := &OutboxDirectProcessor{
		DB:          db,
		Logger:      logger,
		WorkerID:    "direct-" + uuid.NewString(),
		BatchSize:   50,
		Interval:    2 * time.Second,
		LockTTL:     30 * time.Second,
		MaxAttempts: 10,
		BaseBackoff: 5 * time.Second,
		MaxBackoff:  10 * time.Minute,
	}
	if config.GetEventBroker() != config.EventBrokerNone {
		p.MinAge = time.Minute
	}
	if n := envPositiveInt("OUTBOX_PROCESS_MAX_ATTEMPTS"); n > 0 {
		p.MaxAttempts = n
	}
	if n := envPositiveInt("OUTBOX_PROCESS_BASE_BACKOFF_SECONDS"); n > 0 {
		p.BaseBackoff = time.Duration(n) * time.Second
	}
	if n := envPositiveInt("OUTBOX_PROCESS_MAX_BACKOFF_SECONDS"); n > 0 {
		p.MaxBackoff = time.Duration(n) * time.Second
	}
	return p
}

func envPositiveInt(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func (p *OutboxDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

// processOnce returns the number of records processed successfully.
func (p *OutboxDirectProcessor) processOnce(ctx context.Context) int {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.OutboxRecord
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = ? AND processing_status <> ?", false, models.OutboxProcessStatusDead).
			Where("(next_process_attempt_at IS NULL OR next_process_attempt_at <= ?)", now).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore)
		if p.MinAge > 0 {
			q = q.Where("created_at <= ?", now.Add(-p.MinAge))
		}
		q = q.Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		ids := make([]int, len(claimed))
		for i := range claimed {
			ids[i] = claimed[i].ID
		}
		return tx.Model(&models.OutboxRecord{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"locked_at": &now,
				"locked_by": &p.WorkerID,
			}).Error
	})
	if err != nil {
		config.LogError(p.Logger, "directProcessor.go", "processOnce", "claim outbox batch", nil, err)
		return 0
	}

	processed := 0
	for _, rec := range claimed {
		if err := ProcessMessage(ctx, p.Logger, rec.ToEventMessage()); err != nil {
			p.markFailure(ctx, rec, err)
			continue
		}
		processed++
		_ = p.DB.WithContext(ctx).Model(&models.OutboxRecord{}).
			Where("id = ? AND locked_by = ?", rec.ID, p.WorkerID).
			Updates(map[string]interface{}{"locked_at": nil, "locked_by": nil}).Error
	}
	return processed
}

func (p *OutboxDirectProcessor) markFailure(ctx context.Context, rec models.OutboxRecord, cause error) {
	attempt := rec.ProcessAttempts + 1
	dead := p.MaxAttempts > 0 && attempt >= p.MaxAttempts
	var next *time.Time
	if !dead {
		at := time.Now().UTC().Add(backoff(attempt, p.BaseBackoff, p.MaxBackoff))
		next = &at
	}
	if err := models.MarkOutboxProcessFailed(ctx, rec.ID, cause, next, dead); err != nil {
		config.LogError(p.Logger, "directProcessor.go", "markFailure", "update outbox record", rec.ID, err)
	}
	if p.Logger == nil {
		return
	}
	entry := p.Logger.WithFields(logrus.Fields{
		"field":          "OutboxDirectProcessor",
		"event_type":     rec.EventType,
		"reference_type": rec.ReferenceType,
		"reference_id":   rec.ReferenceId,
		"record_id":      rec.ID,
		"attempt":        attempt,
	})
	if dead {
		entry.Error("outbox processing moved to DEAD after max attempts: " + cause.Error())
		return
	}
	entry.Error("direct processing failed: " + cause.Error())
}
