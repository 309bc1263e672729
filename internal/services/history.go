package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Amivian/paystack-gobackend/internal/models"
)

// MongoOrderHistory appends entries to the order_history collection. It is
// the only thing this service does to an order.
type MongoOrderHistory struct {
	col *mongo.Collection
}

func NewMongoOrderHistory(db *mongo.Database) *MongoOrderHistory {
	return &MongoOrderHistory{col: db.Collection("order_history")}
}

func (h *MongoOrderHistory) AddHistory(ctx context.Context, orderID, status, comment string, notify bool) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	entry := models.OrderHistoryEntry{
		OrderID:   orderID,
		Status:    status,
		Comment:   comment,
		Notify:    notify,
		CreatedAt: time.Now().UTC(),
	}
	_, err := h.col.InsertOne(ctx, entry)
	return err
}
