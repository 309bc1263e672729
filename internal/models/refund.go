package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Refund is one accepted refund against a settled transaction. Rows are
// append-only; the sum of refund amounts for a transaction never exceeds
// the transaction amount.
type Refund struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TransactionID   string             `bson:"transaction_id" json:"transaction_id"`
	OrderID         string             `bson:"order_id" json:"order_id"`
	RefundReference string             `bson:"refund_reference" json:"refund_reference"`
	Amount          float64            `bson:"amount" json:"amount"`
	Currency        string             `bson:"currency" json:"currency"`
	Status          string             `bson:"status" json:"status"`
	GatewayResponse string             `bson:"gateway_response" json:"gateway_response,omitempty"`
	Reason          string             `bson:"reason" json:"reason,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}
