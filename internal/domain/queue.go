package domain

import "github.com/google/uuid"

// QueueEntry is a notification obligation for one (listing, user) pair.
type QueueEntry struct {
	ID        uuid.UUID `db:"id"`
	ListingID uuid.UUID `db:"listing_id"`
	UserID    uuid.UUID `db:"user_id"`
	IsSent    bool      `db:"is_sent"`
}

// PendingNotification is an unsent queue entry joined with what the message needs.
type PendingNotification struct {
	EntryID uuid.UUID
	ChatID  string
	Listing Candidate
}
