package store

import (
	"context"
	"errors"

	"chat-companion/backend/internal/models"

	"gorm.io/gorm"
)

// Domain-level errors surfaced by the repositories
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrNoActivePersonality = errors.New("no active personality configured")
)

// Store owns the database handle and hands out transactional scopes.
type Store struct {
	db *gorm.DB
}

// New creates a store around an open gorm handle
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the engine's tables
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&models.User{}, &models.Message{}, &models.Personality{})
}

// Ping verifies the underlying connection is alive
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// WithTx runs fn inside a single transaction: commit when fn returns nil,
// rollback on error or panic. The connection is always released.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

// Tx is a unit of work scoped to one transaction
type Tx struct {
	db *gorm.DB
}

// Users returns the user repository bound to this transaction
func (t *Tx) Users() *UserRepository {
	return &UserRepository{db: t.db}
}

// Messages returns the message repository bound to this transaction
func (t *Tx) Messages() *MessageRepository {
	return &MessageRepository{db: t.db}
}

// Personalities returns the personality repository bound to this transaction
func (t *Tx) Personalities() *PersonalityRepository {
	return &PersonalityRepository{db: t.db}
}
