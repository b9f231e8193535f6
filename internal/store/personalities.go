package store

import (
	"errors"
	"time"

	"chat-companion/backend/internal/models"

	"gorm.io/gorm"
)

// PersonalityRepository reads and writes the shared persona configuration
type PersonalityRepository struct {
	db *gorm.DB
}

// Active returns the first personality flagged active
func (r *PersonalityRepository) Active() (*models.Personality, error) {
	var personality models.Personality
	err := r.db.Where("is_active = ?", true).Order("id ASC").First(&personality).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActivePersonality
		}
		return nil, err
	}
	return &personality, nil
}

// Create persists a new personality row
func (r *PersonalityRepository) Create(personality *models.Personality) error {
	if personality.CreatedAt.IsZero() {
		personality.CreatedAt = time.Now().UTC()
	}
	return r.db.Create(personality).Error
}

// EnsureDefault installs a default active personality when none is active.
// Called once at process start.
func (r *PersonalityRepository) EnsureDefault(persona string) error {
	_, err := r.Active()
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNoActivePersonality) {
		return err
	}

	return r.Create(&models.Personality{
		Persona:     persona,
		Name:        "Default",
		Description: "Default caring and empathetic personality",
		IsActive:    true,
	})
}

// Activate makes the given personality the only active one. Deactivating
// every row first keeps the at-most-one-active invariant when callers race,
// as long as both statements share the enclosing transaction.
func (r *PersonalityRepository) Activate(id uint) error {
	if err := r.db.Model(&models.Personality{}).Where("is_active = ?", true).Update("is_active", false).Error; err != nil {
		return err
	}
	res := r.db.Model(&models.Personality{}).Where("id = ?", id).Update("is_active", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
