package models

import (
	"time"
)

// User is a chat participant, created lazily on first contact from an
// external identity. Never deleted by the engine.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ExternalID      *int64    `gorm:"uniqueIndex" json:"external_id,omitempty"`
	Name            string    `gorm:"size:64;not null" json:"name"`
	IsPremium       bool      `gorm:"default:false" json:"is_premium"`
	CreatedAt       time.Time `json:"created_at"`
	LastInteraction time.Time `json:"last_interaction,omitempty"`

	Messages []Message `gorm:"foreignKey:UserID" json:"-"`
}

// Message is one conversation turn. Immutable once written; context
// ordering is by Timestamp ascending.
type Message struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"index;not null" json:"user_id"`
	Content           string    `gorm:"type:text;not null" json:"content"`
	IsFromBot         bool      `gorm:"default:false" json:"is_from_bot"`
	ExternalMessageID *int64    `json:"external_message_id,omitempty"`
	Timestamp         time.Time `gorm:"index" json:"timestamp"`
}

// Personality is the globally shared system persona. At most one row is
// active at a time; bootstrap guarantees at least one exists.
type Personality struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Persona     string    `gorm:"type:text;not null" json:"persona"`
	Name        string    `gorm:"size:64" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// SendMessageRequest is the transport-facing message payload
type SendMessageRequest struct {
	ExternalID        *int64 `json:"external_id"`
	ExternalMessageID *int64 `json:"external_message_id"`
	Text              string `json:"text" binding:"required"`
}

// SendMessageResponse carries the reply text back to the transport
type SendMessageResponse struct {
	Reply     string `json:"reply"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// TogglePremiumRequest identifies the user whose premium flag to flip
type TogglePremiumRequest struct {
	ExternalID *int64 `json:"external_id"`
}

// TogglePremiumResponse carries the resulting status string
type TogglePremiumResponse struct {
	Status string `json:"status"`
}
