// Package store provides the DedupRepo interface for inbound message deduplication.
package store

import "time"

// DedupRecord represents an inbound webhook deduplication record. Twilio
// delivers webhooks at least once; the MessageSid lets us acknowledge a
// replay without dispatching it to the conversation engine again.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	PhoneNumber string     `json:"phone_number"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo defines the interface for inbound message deduplication.
type DedupRepo interface {
	// IsDuplicate checks if a message ID has already been recorded.
	IsDuplicate(messageID string) (bool, error)

	// RecordInbound inserts a new inbound message record. Returns false only
	// when the message was already recorded and fully processed; a record left
	// by an earlier failed attempt is let through so the retry can be handled.
	RecordInbound(messageID, phoneNumber string) (bool, error)

	// MarkProcessed sets the processed_at timestamp for a message.
	MarkProcessed(messageID string) error
}
