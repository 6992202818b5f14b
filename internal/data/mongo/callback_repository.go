package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/loanspur/paymentvalut-sub005/internal/domain/callback"
)

const (
	// CallbackCollectionName is the name of the callback audit collection in MongoDB
	CallbackCollectionName = "gateway_callbacks"
)

// CallbackRepository implements the callback.Repository interface for MongoDB
type CallbackRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewCallbackRepository creates a new MongoDB callback audit repository
func NewCallbackRepository(logger *slog.Logger, db *mongo.Database) callback.Repository {
	return &CallbackRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores one raw callback record. Records are append-only; a
// redelivered callback gets its own record with its own received time.
func (r *CallbackRepository) Insert(ctx context.Context, rec *callback.Record) error {
	collection := r.db.Collection(CallbackCollectionName)

	_, err := collection.InsertOne(ctx, rec)
	if err != nil {
		r.logger.Error("Failed to insert callback record",
			"kind", rec.Kind,
			"conversation_id", rec.ConversationID,
			"error", err)
		return fmt.Errorf("failed to insert callback record: %w", err)
	}

	return nil
}

// ListByConversationID retrieves the callback history for a conversation,
// newest first
func (r *CallbackRepository) ListByConversationID(ctx context.Context, conversationID string, limit int) ([]*callback.Record, error) {
	filter := bson.M{"conversation_id": conversationID}
	return r.list(ctx, filter, limit)
}

// ListUnmatched returns callbacks that matched nothing, newest first
func (r *CallbackRepository) ListUnmatched(ctx context.Context, limit int) ([]*callback.Record, error) {
	filter := bson.M{"match_outcome": callback.MatchNone}
	return r.list(ctx, filter, limit)
}

func (r *CallbackRepository) list(ctx context.Context, filter bson.M, limit int) ([]*callback.Record, error) {
	collection := r.db.Collection(CallbackCollectionName)

	opts := options.Find().
		SetSort(bson.M{"received_at": -1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list callback records", "error", err)
		return nil, fmt.Errorf("failed to list callback records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*callback.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode callback records", "error", err)
		return nil, fmt.Errorf("failed to decode callback records: %w", err)
	}

	return records, nil
}
