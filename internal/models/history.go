package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderHistoryEntry is one appended entry in an order's history. The order
// subsystem itself lives outside this service; we only append.
type OrderHistoryEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID   string             `bson:"order_id" json:"order_id"`
	Status    string             `bson:"status" json:"status"`
	Comment   string             `bson:"comment" json:"comment"`
	Notify    bool               `bson:"notify" json:"notify"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
