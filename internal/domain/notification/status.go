// internal/domain/notification/status.go
package notification

import (
	"time"
)

// Status is the delivery state of one outbound message.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Channel names the transport a message went out on.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
)

// MessageType tags why a message was sent.
type MessageType string

const (
	MessageDailyDigest   MessageType = "daily_digest"
	MessageGriefReminder MessageType = "grief_reminder"
	MessageDirect        MessageType = "direct"
)

// Log is one reminder attempt record. Corresponds to the 'notification_logs' table.
// After insert only Attempts, Status, LastError and the terminal timestamps change.
type Log struct {
	ID          string
	CampusID    string
	MemberID    string // empty for staff recipients
	RecipientID string // staff user id for digests
	Channel     Channel
	MessageType MessageType
	Recipient   string // phone number or chat id
	Message     string
	Status      Status
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	SentAt      *time.Time
	FailedAt    *time.Time
}
