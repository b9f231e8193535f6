package store

import (
	"time"

	"chat-companion/backend/internal/models"

	"gorm.io/gorm"
)

// MessageRepository reads and writes conversation turns within one transaction
type MessageRepository struct {
	db *gorm.DB
}

// Append persists a message, stamping it if the caller did not
func (r *MessageRepository) Append(message *models.Message) error {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	return r.db.Create(message).Error
}

// RecentByUser returns the newest limit messages for a user,
// ordered by timestamp descending
func (r *MessageRepository) RecentByUser(userID uint, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// CountByUser returns the total number of stored messages for a user
func (r *MessageRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
