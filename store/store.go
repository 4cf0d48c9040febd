// Package store keeps run history in PostgreSQL.
package store

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/meenmo/hedgeassign/config"
)

// Open connects through lib/pq. DryRun sessions never touch the server.
func Open(cfg config.DBConfig, gcfg *gorm.Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("Open: empty dsn")
	}
	if gcfg == nil {
		gcfg = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        ConnString(cfg),
	}), gcfg)
	if err != nil {
		return nil, err
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return gdb, nil
}

// ConnString returns cfg.DSN with the configured time zone attached as a
// connection parameter, so every pooled connection runs in it. A DSN that
// already names a time zone is left alone.
func ConnString(cfg config.DBConfig) string {
	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" || strings.Contains(strings.ToLower(cfg.DSN), "timezone=") {
		return cfg.DSN
	}
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		sep := "?"
		if strings.Contains(cfg.DSN, "?") {
			sep = "&"
		}
		return cfg.DSN + sep + "timezone=" + url.QueryEscape(tz)
	}
	return strings.TrimSpace(cfg.DSN) + " timezone=" + tz
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the hedge_runs table.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).AutoMigrate(&Run{})
}

func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if s == nil || s.db == nil || run == nil {
		return nil
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var run Run
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the newest runs of an experiment first; an empty experiment lists all.
func (s *Store) ListRuns(ctx context.Context, experiment string, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Model(&Run{})
	if experiment != "" {
		query = query.Where("experiment = ?", experiment)
	}
	var runs []Run
	if err := query.Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
