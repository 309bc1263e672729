package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction statuses. A transaction only moves forward:
// pending -> success | failed | cancelled, and success -> refunded.
const (
	StatusPending   = "pending"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// Transaction is one initiated payment attempt. The reference is the
// gateway-facing identifier and is immutable once created, as are the
// amount and currency.
type Transaction struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID           string             `bson:"order_id" json:"order_id"`
	Reference         string             `bson:"reference" json:"reference"`
	AccessCode        string             `bson:"access_code" json:"access_code"`
	Amount            float64            `bson:"amount" json:"amount"`
	Currency          string             `bson:"currency" json:"currency"`
	Status            string             `bson:"status" json:"status"`
	GatewayResponse   string             `bson:"gateway_response" json:"gateway_response,omitempty"`
	CustomerEmail     string             `bson:"customer_email" json:"customer_email"`
	CustomerName      string             `bson:"customer_name" json:"customer_name"`
	PaymentMethod     string             `bson:"payment_method" json:"payment_method,omitempty"`
	AuthorizationCode string             `bson:"authorization_code" json:"authorization_code,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// ValidStatus reports whether s is one of the known transaction statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}
