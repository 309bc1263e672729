package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookLog records one inbound webhook delivery. Every delivery gets its
// own row, including retries of the same logical event; processed marks that
// reconciliation was attempted for that row, never re-attempted.
type WebhookLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventType    string             `bson:"event_type" json:"event_type"`
	Reference    string             `bson:"reference" json:"reference"`
	Payload      string             `bson:"payload" json:"payload"`
	Signature    string             `bson:"signature" json:"signature"`
	Verified     bool               `bson:"verified" json:"verified"`
	Processed    bool               `bson:"processed" json:"processed"`
	ErrorMessage string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}
