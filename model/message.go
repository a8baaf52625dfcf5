package model

import "gorm.io/gorm"

// Message is one direct message between two directory users. Content and
// FileURL may not both be empty; content and attachment are immutable once
// stored, only Read ever flips. Rows disappear solely through the privileged
// conversation delete.
type Message struct {
	gorm.Model
	SenderID   uint   `gorm:"not null;index" json:"sender_id"`
	ReceiverID uint   `gorm:"not null;index" json:"receiver_id"`
	Sender     User   `gorm:"foreignKey:SenderID" json:"-"`
	Receiver   User   `gorm:"foreignKey:ReceiverID" json:"-"`
	Content    string `json:"content"`
	Read       bool   `gorm:"not null;default:false" json:"is_read"`
	FileURL    string `json:"file_url,omitempty"`
	FileType   string `json:"file_type,omitempty"`
}
