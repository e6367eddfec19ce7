package domain

import (
	"strings"
	"time"
)

// User is the directory view of an application user. Profiles are owned by
// the surrounding app; the chat core only reads them.
type User struct {
	ID        string `json:"id" bson:"_id"`
	Username  string `json:"username" bson:"username"`
	Email     string `json:"email,omitempty" bson:"email"`
	FirstName string `json:"firstName,omitempty" bson:"firstName"`
	LastName  string `json:"lastName,omitempty" bson:"lastName"`
	Avatar    string `json:"avatar,omitempty" bson:"avatar"`
}

// DisplayName is "First Last" when both parts are set, otherwise the username.
func (u *User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

// AttachmentKind is the media type of an attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
)

// Attachment describes media already uploaded to the asset host.
type Attachment struct {
	Kind       AttachmentKind `json:"type" bson:"type" validate:"required,oneof=image video"`
	URL        string         `json:"url" bson:"url" validate:"required,url"`
	ExternalID string         `json:"publicId,omitempty" bson:"publicId,omitempty"`
}

// Message is a single direct message between two users.
type Message struct {
	ID          string       `json:"id" bson:"_id"`
	SenderID    string       `json:"senderId" bson:"senderId"`
	ReceiverID  string       `json:"receiverId" bson:"receiverId"`
	Text        string       `json:"text" bson:"text"`
	Attachments []Attachment `json:"attachments" bson:"attachments"`
	IsRead      bool         `json:"isRead" bson:"isRead"`
	CreatedAt   time.Time    `json:"createdAt" bson:"createdAt"`
}

// Empty reports whether the message carries neither text nor attachments.
func (m *Message) Empty() bool {
	return strings.TrimSpace(m.Text) == "" && len(m.Attachments) == 0
}
