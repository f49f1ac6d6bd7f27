package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	apperrors "github.com/kbukum/etlkit/errors"
	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/observability"
	"github.com/kbukum/etlkit/resilience"
)

// Journal stores invocation entries.
type Journal struct {
	db     *gorm.DB
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Step     string
	Pipeline string
	Status   string
	Since    time.Time
	// Limit caps the number of entries; 0 means no limit.
	Limit int
}

// Open opens the journal database, retrying with an exponential backoff, and
// migrates the entry table.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Journal, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Configuration("journal", err.Error())
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("journal")

	slow, _ := time.ParseDuration(cfg.SlowQueryThreshold)
	gormCfg := &gorm.Config{Logger: newGormLogger(log, slow, parseLogLevel(cfg.LogLevel))}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Warn("Journal open failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
			"backoff": backoff.String(),
		})
	}
	db, err := resilience.Retry(ctx, retry, func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, err
		}
		return db, ping(ctx, db)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("journal open canceled: %w", err)
		}
		return nil, apperrors.Storage("open", fmt.Errorf("after %d attempts: %w", cfg.MaxRetries, err))
	}
	if sqlDB, sqlErr := db.DB(); sqlErr == nil && cfg.DSN == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, apperrors.Storage("migrate", err)
	}

	log.Info("Journal opened", map[string]interface{}{"dsn": cfg.DSN})
	return &Journal{db: db, log: log, cfg: cfg}, nil
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Record stores e.
func (j *Journal) Record(ctx context.Context, e *Entry) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanJournal)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrInvocation, e.InvocationID)

	if !j.cfg.KeepLogText {
		copied := *e
		copied.LogText = ""
		e = &copied
	}
	if err := j.db.WithContext(ctx).Create(e).Error; err != nil {
		observability.SetSpanError(ctx, err)
		return apperrors.Storage("record", err)
	}
	return nil
}

// Get returns the entry with the given ID.
func (j *Journal) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := j.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("invocation", id)
	}
	if err != nil {
		return nil, apperrors.Storage("get", err)
	}
	return &e, nil
}

// List returns entries matching f, oldest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := j.db.WithContext(ctx).Model(&Entry{})
	if f.Step != "" {
		q = q.Where("step = ?", f.Step)
	}
	if f.Pipeline != "" {
		q = q.Where("pipeline = ?", f.Pipeline)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.Since.IsZero() {
		q = q.Where("started_at >= ?", f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var entries []Entry
	if err := q.Order("started_at ASC").Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, apperrors.Storage("list", err)
	}
	return entries, nil
}

// Summary aggregates the entries of one step.
type Summary struct {
	Invocations int64
	Failed      int64
	Errors      int64
	Written     int64
}

// Summarize aggregates every entry recorded for step.
func (j *Journal) Summarize(ctx context.Context, step string) (Summary, error) {
	var s Summary
	err := j.db.WithContext(ctx).Model(&Entry{}).
		Select("COUNT(*) AS invocations, "+
			"COALESCE(SUM(CASE WHEN succeeded THEN 0 ELSE 1 END), 0) AS failed, "+
			"COALESCE(SUM(errors), 0) AS errors, "+
			"COALESCE(SUM(lines_written), 0) AS written").
		Where("step = ?", step).
		Scan(&s).Error
	if err != nil {
		return Summary{}, apperrors.Storage("summarize", err)
	}
	return s, nil
}

// Ping verifies the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return ping(ctx, j.db)
}

// Close closes the database. Safe to call multiple times.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	j.closed = true
	j.log.Info("Closing journal")
	return sqlDB.Close()
}
