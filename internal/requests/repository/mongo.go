package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	requesterrors "openrequests/internal/requests/errors"
	"openrequests/pkg/config"
	"openrequests/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRequestStore struct {
	cfg        *config.Config
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRequestStore(cfg *config.Config) RequestStore {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRequestStore{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		now:        time.Now,
	}
}

// withTimeout bounds each store call by the configured timeout without
// extending a tighter deadline already set by the caller.
func (r *mongoRequestStore) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoRequestStore) Create(ctx context.Context, request *model.Request) error {
	if err := validateID(request.ID); err != nil {
		return fmt.Errorf("%w: %s", err, request.ID)
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	request.UpdatedAt = request.CreatedAt
	if _, err := r.collection.InsertOne(ctx, request); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return requesterrors.ErrDuplicateID
		}
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (r *mongoRequestStore) Get(ctx context.Context, id string) (*model.Request, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("%w: %s", err, id)
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var request model.Request
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, requesterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find request: %w", err)
	}
	return &request, nil
}

// CompareAndSwap is a single-document FindOneAndUpdate filtered on the
// expected version; Mongo makes it atomic, so no session or lock is needed.
func (r *mongoRequestStore) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutation model.Mutation) (*model.Request, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("%w: %s", err, id)
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set := bson.M{
		"status":     mutation.Status,
		"updated_at": r.now().UTC().Truncate(time.Millisecond),
	}
	if mutation.ClaimedBy != "" {
		set["claimed_by"] = mutation.ClaimedBy
		set["accepted_time_slot"] = mutation.AcceptedTimeSlot
	}
	if mutation.CompletedAt != nil {
		set["completed_at"] = mutation.CompletedAt.UTC().Truncate(time.Millisecond)
	}

	filter := bson.M{"_id": id, "version": expectedVersion}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Request
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	// No match: either the id is unknown or the version moved underneath us.
	count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if countErr != nil {
		return nil, fmt.Errorf("failed to resolve version conflict: %w", countErr)
	}
	if count == 0 {
		return nil, requesterrors.ErrNotFound
	}
	return nil, requesterrors.ErrVersionConflict
}

func (r *mongoRequestStore) ListActive(ctx context.Context) ([]*model.Request, error) {
	filter := bson.M{"status": bson.M{"$in": []model.RequestStatus{model.StatusSent, model.StatusSearching}}}
	opts := options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoRequestStore) ListSearching(ctx context.Context, limit int, offset int64) ([]*model.Request, error) {
	filter := bson.M{
		"status":     model.StatusSearching,
		"expires_at": bson.M{"$gt": r.now().UTC()},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, filter, opts)
}

func (r *mongoRequestStore) ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Request, error) {
	return r.find(ctx, bson.M{"patient_id": patientID}, newestFirst(limit, offset))
}

func (r *mongoRequestStore) ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Request, error) {
	return r.find(ctx, bson.M{"claimed_by": providerID}, newestFirst(limit, offset))
}

func (r *mongoRequestStore) Ping(ctx context.Context) error {
	return r.cfg.Client.Mongo.Ping(ctx, nil)
}

func (r *mongoRequestStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Request, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find requests: %w", err)
	}
	defer cursor.Close(ctx)

	requests := []*model.Request{}
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode requests: %w", err)
	}
	return requests, nil
}

func newestFirst(limit int, offset int64) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
}
