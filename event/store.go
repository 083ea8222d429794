package event

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ncobase/spacearc/data"
	"github.com/ncobase/spacearc/logging/logger"
)

const defaultMemoryStoreSize = 1024

// mongoCollection holds the audit trail when the Mongo store is selected.
const mongoCollection = "job_events"

// Store persists lifecycle events for audit and admin inspection.
type Store interface {
	Save(ctx context.Context, event *Event) error
	LoadByJob(ctx context.Context, jobID int64) ([]*Event, error)
	LoadRecent(ctx context.Context, limit int) ([]*Event, error)
}

// NewStore builds the store selected by kind ("memory" or "mongo"). It falls
// back to the in-memory ring when Mongo is requested but not reachable.
func NewStore(kind, mongoDatabase string, d *data.Data, log *logger.Logger) Store {
	if log == nil {
		log = logger.StdLogger()
	}
	if kind == "mongo" && d != nil {
		db := d.GetMongoDatabase(mongoDatabase)
		if db != nil {
			store, err := NewMongoStore(db.Collection(mongoCollection), log)
			if err == nil {
				return store
			}
			log.Warn(context.Background(), "mongo event store unavailable, using memory",
				"error", err)
		}
	}
	return NewMemoryStore(defaultMemoryStoreSize)
}

// MemoryStore keeps the most recent events in an in-memory ring.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event
	max    int
}

// NewMemoryStore creates a ring store holding at most max events.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = defaultMemoryStoreSize
	}
	return &MemoryStore{max: max}
}

func (s *MemoryStore) Save(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *event
	s.events = append(s.events, &eventCopy)
	if len(s.events) > s.max {
		s.events = s.events[len(s.events)-s.max:]
	}
	return nil
}

func (s *MemoryStore) LoadByJob(ctx context.Context, jobID int64) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*Event
	for _, event := range s.events {
		if event.JobID == jobID {
			events = append(events, event)
		}
	}
	return events, nil
}

func (s *MemoryStore) LoadRecent(ctx context.Context, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]*Event, limit)
	copy(out, s.events[len(s.events)-limit:])
	return out, nil
}

// MongoStore persists events to a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewMongoStore wraps the collection and ensures its indexes.
func NewMongoStore(collection *mongo.Collection, log *logger.Logger) (*MongoStore, error) {
	if collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	store := &MongoStore{collection: collection, logger: log}
	if err := store.ensureIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure event indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "job_id", Value: 1}, {Key: "timestamp", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "type", Value: 1}, {Key: "timestamp", Value: -1}},
		},
	})
	return err
}

func (s *MongoStore) Save(ctx context.Context, event *Event) error {
	filter := bson.M{"id": event.ID}
	update := bson.M{"$set": event}
	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) LoadByJob(ctx context.Context, jobID int64) ([]*Event, error) {
	return s.loadMany(ctx, bson.M{"job_id": jobID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
}

func (s *MongoStore) LoadRecent(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	events, err := s.loadMany(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	// Newest-first from Mongo; callers expect chronological order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (s *MongoStore) loadMany(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Event, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*Event
	for cursor.Next(ctx) {
		evt := &Event{}
		if err := cursor.Decode(evt); err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, cursor.Err()
}
