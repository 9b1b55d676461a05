package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"dreamdecode/internal/util"
	"dreamdecode/pkg/domain"
)

const (
	migrateLockID       int64 = 51733517
	defaultMessageLimit       = 200
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent replicas do not race on DDL.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &DreamModel{}, &ConversationMessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'conversation_message_models'
					AND constraint_name = 'conversation_message_models_dream_id_fkey'
				) THEN
					DELETE FROM conversation_message_models m
					WHERE NOT EXISTS (SELECT 1 FROM dream_models d WHERE d.id = m.dream_id);
					ALTER TABLE conversation_message_models
					ADD CONSTRAINT conversation_message_models_dream_id_fkey
					FOREIGN KEY (dream_id) REFERENCES dream_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure dream foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks connectivity for health probes.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user profile.
func (s *GormStore) SaveUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "name", "streak_current", "streak_longest", "last_dream_date",
			"subscription_tier", "interpretation_style", "reminder_time",
			"onboarding_completed", "updated_at",
		}),
	}).Create(&model).Error
}

// GetUser returns a user by ID.
func (s *GormStore) GetUser(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveDream upserts a dream. Local-only fields are stripped first.
func (s *GormStore) SaveDream(ctx context.Context, d domain.Dream) error {
	model, err := dreamToModel(RemoteDream(d))
	if err != nil {
		return fmt.Errorf("encode dream: %w", err)
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "transcription", "summary", "audio_url", "audio_duration_seconds",
			"moods", "symbols", "interpretation", "art_url", "is_premium_content", "updated_at",
		}),
	}).Create(&model).Error
}

// GetDream returns one dream owned by userID.
func (s *GormStore) GetDream(ctx context.Context, userID, id string) (domain.Dream, bool, error) {
	var model DreamModel
	if err := s.db.WithContext(ctx).First(&model, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Dream{}, false, nil
		}
		return domain.Dream{}, false, err
	}
	d, err := dreamFromModel(model)
	if err != nil {
		return domain.Dream{}, false, fmt.Errorf("decode dream %s: %w", id, err)
	}
	return d, true, nil
}

// ListDreams returns a user's dreams, newest first.
func (s *GormStore) ListDreams(ctx context.Context, userID string) ([]domain.Dream, error) {
	var models []DreamModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Dream, 0, len(models))
	for _, m := range models {
		d, err := dreamFromModel(m)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("skip undecodable dream", "dream_id", m.ID, "err", err)
			continue
		}
		res = append(res, d)
	}
	return res, nil
}

// DeleteDream removes a dream; its conversation goes with it via FK cascade.
func (s *GormStore) DeleteDream(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ConversationMessageModel{}, "dream_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&DreamModel{}, "id = ? AND user_id = ?", id, userID).Error
	})
}

// AppendMessage records one conversation turn.
func (s *GormStore) AppendMessage(ctx context.Context, dreamID string, msg domain.ConversationMessage) error {
	model := messageToModel(util.NewID(), dreamID, msg)
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListMessages returns the latest limit turns in chronological order.
func (s *GormStore) ListMessages(ctx context.Context, dreamID string, limit int) ([]domain.ConversationMessage, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	var models []ConversationMessageModel
	if err := s.db.WithContext(ctx).
		Where("dream_id = ?", dreamID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ConversationMessage, len(models))
	for i, m := range models {
		out[len(models)-1-i] = messageFromModel(m)
	}
	return out, nil
}
