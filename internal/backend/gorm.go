package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
	"github.com/lingoloop/notifier/internal/models"
)

// GormStore reads and mutates the tables directly through gorm. Used with
// the Postgres change source when the notifier runs next to the database.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to databaseURL with a small pool
func OpenPostgres(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("Database connected")
	return db, nil
}

// NewGormStore wraps an open connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the tables the notifier touches. Only used against
// scratch databases; the hosted schema is owned elsewhere.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.Tweet{},
		&models.Comment{},
		&models.Notification{},
		&models.DirectMessage{},
		&models.MessageAttachment{},
	)
}

func modelFor(table string) (interface{}, error) {
	switch table {
	case TableNotifications:
		return &models.Notification{}, nil
	case TableComments:
		return &models.Comment{}, nil
	case TableTweets:
		return &models.Tweet{}, nil
	case TableProfiles:
		return &models.Profile{}, nil
	case TableDirectMessages:
		return &models.DirectMessage{}, nil
	case TableMessageAttachments:
		return &models.MessageAttachment{}, nil
	default:
		return nil, apperrors.BadRequest("unknown table " + table)
	}
}

func (s *GormStore) FetchByID(ctx context.Context, table, id string, dest interface{}) error {
	return s.observe("fetch", table, func() error {
		err := s.db.WithContext(ctx).Table(table).Where("id = ?", id).Take(dest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(table)
		}
		return err
	})
}

func (s *GormStore) Select(ctx context.Context, table string, q Query, dest interface{}) error {
	return s.observe("select", table, func() error {
		tx := s.db.WithContext(ctx).Table(table)
		if len(q.Columns) > 0 {
			tx = tx.Select(q.Columns)
		}
		for _, col := range q.Filter.Keys() {
			tx = tx.Where(col+" = ?", q.Filter[col])
		}
		if q.OrderBy != "" {
			order := q.OrderBy
			if q.Desc {
				order += " DESC"
			}
			tx = tx.Order(order)
		}
		if q.Limit > 0 {
			tx = tx.Limit(q.Limit)
		}
		return tx.Find(dest).Error
	})
}

func (s *GormStore) Update(ctx context.Context, table, id string, fields map[string]interface{}) error {
	model, err := modelFor(table)
	if err != nil {
		return err
	}
	return s.observe("update", table, func() error {
		return s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(fields).Error
	})
}

func (s *GormStore) Delete(ctx context.Context, table, id string) error {
	model, err := modelFor(table)
	if err != nil {
		return err
	}
	return s.observe("delete", table, func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).Delete(model).Error
	})
}

func (s *GormStore) BulkDelete(ctx context.Context, table string, filter Filter) error {
	if len(filter) == 0 {
		return apperrors.ValidationError("filter", "bulk delete requires at least one constraint")
	}
	model, err := modelFor(table)
	if err != nil {
		return err
	}
	return s.observe("bulk_delete", table, func() error {
		tx := s.db.WithContext(ctx)
		for _, col := range filter.Keys() {
			tx = tx.Where(col+" = ?", filter[col])
		}
		return tx.Delete(model).Error
	})
}

func (s *GormStore) observe(op, table string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.BackendRequestDuration.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
	if err != nil && !apperrors.IsNotFound(err) {
		metrics.BackendErrors.WithLabelValues(op, table).Inc()
		return apperrors.Categorize(err)
	}
	return err
}
