package store

import (
	"errors"
	"time"

	"chat-companion/backend/internal/models"

	"gorm.io/gorm"
)

// DefaultUserName is assigned to users created on first contact
const DefaultUserName = "User"

// UserRepository reads and writes user rows within one transaction
type UserRepository struct {
	db *gorm.DB
}

// ByExternalID looks up a user by its transport-supplied identity
func (r *UserRepository) ByExternalID(externalID int64) (*models.User, error) {
	var user models.User
	err := r.db.Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// First returns an arbitrary existing user, for single-tenant console mode
func (r *UserRepository) First() (*models.User, error) {
	var user models.User
	err := r.db.Order("id ASC").First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create persists a new user row
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// Save persists field changes on an existing user
func (r *UserRepository) Save(user *models.User) error {
	return r.db.Save(user).Error
}

// Resolve maps an external identity to a durable user record, creating one
// on first contact. When externalID is nil it returns an arbitrary existing
// user. Concurrent resolutions of the same unseen id race on the unique
// index; the loser re-fetches the winner's row.
func (r *UserRepository) Resolve(externalID *int64) (*models.User, error) {
	if externalID == nil {
		return r.First()
	}

	user, err := r.ByExternalID(*externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	created := &models.User{
		Name:       DefaultUserName,
		ExternalID: externalID,
		IsPremium:  false,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.Create(created); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the creation race; the row exists now.
			return r.ByExternalID(*externalID)
		}
		return nil, err
	}
	return created, nil
}
