package services

import (
	"context"
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Amivian/paystack-gobackend/internal/models"
)

// amountTolerance absorbs floating-point rounding when comparing amounts.
const amountTolerance = 0.01

const storeTimeout = 5 * time.Second

// MongoStore persists transactions, webhook logs and the refund ledger.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) transactions() *mongo.Collection {
	return s.db.Collection("transactions")
}

func (s *MongoStore) webhookLogs() *mongo.Collection {
	return s.db.Collection("webhook_logs")
}

func (s *MongoStore) refunds() *mongo.Collection {
	return s.db.Collection("refunds")
}

// EnsureIndexes creates the indexes the store relies on. The unique reference
// index is what makes transaction creation safe against duplicate checkouts.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.transactions().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = s.refunds().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "refund_reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = s.webhookLogs().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reference", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

// CreateTransaction inserts a new pending transaction.
func (s *MongoStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	if tx.Status == "" {
		tx.Status = models.StatusPending
	}

	res, err := s.transactions().InsertOne(ctx, tx)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		tx.ID = id
	}
	return nil
}

// GetTransaction fetches a transaction by its store id.
func (s *MongoStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrTransactionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var tx models.Transaction
	if err := s.transactions().FindOne(ctx, bson.M{"_id": objID}).Decode(&tx); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// GetTransactionByReference fetches a transaction by its gateway reference.
func (s *MongoStore) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var tx models.Transaction
	if err := s.transactions().FindOne(ctx, bson.M{"reference": reference}).Decode(&tx); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// MarkSuccess applies the pending->success transition as a single conditional
// update. The filter excludes success and refunded so a duplicate delivery, or
// a replay after a refund, matches nothing. Returns the transaction and
// whether this call performed the transition.
func (s *MongoStore) MarkSuccess(ctx context.Context, reference, gatewayResponse, paymentMethod, authorizationCode string) (*models.Transaction, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	filter := bson.M{
		"reference": reference,
		"status":    bson.M{"$nin": bson.A{models.StatusSuccess, models.StatusRefunded}},
	}
	update := bson.M{"$set": bson.M{
		"status":             models.StatusSuccess,
		"gateway_response":   gatewayResponse,
		"payment_method":     paymentMethod,
		"authorization_code": authorizationCode,
		"updated_at":         time.Now().UTC(),
	}}

	var before models.Transaction
	err := s.transactions().FindOneAndUpdate(ctx, filter, update).Decode(&before)
	if err == nil {
		return &before, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	// Guard failed or the reference is unknown; look it up to tell which.
	tx, err := s.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, false, err
	}
	return tx, false, nil
}

// MarkFailed applies pending->failed or pending->cancelled the same way.
func (s *MongoStore) MarkFailed(ctx context.Context, reference, status, gatewayResponse string) (*models.Transaction, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	filter := bson.M{"reference": reference, "status": models.StatusPending}
	update := bson.M{"$set": bson.M{
		"status":           status,
		"gateway_response": gatewayResponse,
		"updated_at":       time.Now().UTC(),
	}}

	var before models.Transaction
	err := s.transactions().FindOneAndUpdate(ctx, filter, update).Decode(&before)
	if err == nil {
		return &before, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	tx, err := s.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, false, err
	}
	return tx, false, nil
}

// MarkRefunded applies success->refunded by transaction id.
func (s *MongoStore) MarkRefunded(ctx context.Context, id string) (bool, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrTransactionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	res, err := s.transactions().UpdateOne(ctx,
		bson.M{"_id": objID, "status": models.StatusSuccess},
		bson.M{"$set": bson.M{"status": models.StatusRefunded, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ListFilter narrows and pages the transaction listing.
type ListFilter struct {
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int64
	Limit     int64
}

// ListTransactions returns a page of transactions, newest first, and the
// total count matching the filter.
func (s *MongoStore) ListTransactions(ctx context.Context, f ListFilter) ([]models.Transaction, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	dateRange := bson.M{}
	if f.StartDate != nil {
		dateRange["$gte"] = *f.StartDate
	}
	if f.EndDate != nil {
		dateRange["$lte"] = *f.EndDate
	}
	if len(dateRange) > 0 {
		query["created_at"] = dateRange
	}

	total, err := s.transactions().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((f.Page - 1) * f.Limit).
		SetLimit(f.Limit)

	cursor, err := s.transactions().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	transactions := make([]models.Transaction, 0)
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

// PaymentStatistics summarizes transactions by status.
type PaymentStatistics struct {
	TotalTransactions int64   `json:"total_transactions"`
	TotalPaid         float64 `json:"total_paid"`
	Successful        int64   `json:"successful_transactions"`
	Failed            int64   `json:"failed_transactions"`
	Pending           int64   `json:"pending_transactions"`
	Cancelled         int64   `json:"cancelled_transactions"`
	Refunded          int64   `json:"refunded_transactions"`
}

// GetPaymentStatistics aggregates transaction counts and the total amount
// settled successfully.
func (s *MongoStore) GetPaymentStatistics(ctx context.Context) (*PaymentStatistics, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "amount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}

	cursor, err := s.transactions().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string  `bson:"_id"`
		Count  int64   `bson:"count"`
		Amount float64 `bson:"amount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	stats := &PaymentStatistics{}
	for _, row := range rows {
		stats.TotalTransactions += row.Count
		switch row.Status {
		case models.StatusSuccess:
			stats.Successful = row.Count
			stats.TotalPaid += row.Amount
		case models.StatusFailed:
			stats.Failed = row.Count
		case models.StatusPending:
			stats.Pending = row.Count
		case models.StatusCancelled:
			stats.Cancelled = row.Count
		case models.StatusRefunded:
			stats.Refunded = row.Count
			stats.TotalPaid += row.Amount
		}
	}
	return stats, nil
}

// LogWebhook appends one delivery to the webhook log and returns its id.
// Every delivery gets its own row, duplicates included.
func (s *MongoStore) LogWebhook(ctx context.Context, lg *models.WebhookLog) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	lg.CreatedAt = time.Now().UTC()
	res, err := s.webhookLogs().InsertOne(ctx, lg)
	if err != nil {
		return "", err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("webhook log: unexpected inserted id type")
	}
	lg.ID = id
	return id.Hex(), nil
}

// MarkWebhookProcessed marks a log row as handled, optionally with a note
// explaining a documented no-op ("already processed", unknown event, ...).
func (s *MongoStore) MarkWebhookProcessed(ctx context.Context, logID, errorMessage string) error {
	objID, err := primitive.ObjectIDFromHex(logID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	set := bson.M{"processed": true}
	if errorMessage != "" {
		set["error_message"] = errorMessage
	}
	_, err = s.webhookLogs().UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": set})
	return err
}

// SetWebhookError records a failure on a log row without marking it
// processed, so a redelivery is still reconciled.
func (s *MongoStore) SetWebhookError(ctx context.Context, logID, errorMessage string) error {
	objID, err := primitive.ObjectIDFromHex(logID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err = s.webhookLogs().UpdateOne(ctx, bson.M{"_id": objID},
		bson.M{"$set": bson.M{"error_message": errorMessage}})
	return err
}

// AddRefund appends a row to the refund ledger. Rows are never mutated.
func (s *MongoStore) AddRefund(ctx context.Context, refund *models.Refund) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	refund.CreatedAt = time.Now().UTC()
	res, err := s.refunds().InsertOne(ctx, refund)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		refund.ID = id
	}
	return nil
}

// SumRefunds returns the total amount already refunded for a transaction.
func (s *MongoStore) SumRefunds(ctx context.Context, transactionID string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "transaction_id", Value: transactionID}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}

	cursor, err := s.refunds().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// GetRefundsByTransaction returns a transaction's refunds, newest first.
func (s *MongoStore) GetRefundsByTransaction(ctx context.Context, transactionID string) ([]models.Refund, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.refunds().Find(ctx, bson.M{"transaction_id": transactionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	refunds := make([]models.Refund, 0)
	if err := cursor.All(ctx, &refunds); err != nil {
		return nil, err
	}
	return refunds, nil
}

// ValidateTransactionAmount checks a reported amount against the stored
// transaction within the fixed tolerance. When the currencies differ the
// check accepts the amount as-is; converting at current rates is not
// implemented.
func (s *MongoStore) ValidateTransactionAmount(ctx context.Context, reference string, expectedAmount float64, currency string) (bool, error) {
	tx, err := s.GetTransactionByReference(ctx, reference)
	if err != nil {
		return false, err
	}

	if tx.Currency == currency {
		return math.Abs(tx.Amount-expectedAmount) <= amountTolerance, nil
	}
	return true, nil
}

// CleanupPending deletes pending transactions older than the cutoff. This is
// maintenance, not part of the reconciliation contract; callers treat errors
// as non-fatal.
func (s *MongoStore) CleanupPending(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.transactions().DeleteMany(ctx, bson.M{
		"status":     models.StatusPending,
		"created_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
