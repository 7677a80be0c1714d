package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QueryRecord is one user lookup as stored in the history collection.
type QueryRecord struct {
	UserID    int64     `bson:"user_id"`
	ChatID    int64     `bson:"chat_id"`
	UserName  string    `bson:"username"`
	API       string    `bson:"api"`       // TENDERGURU or DAMIA
	Operation string    `bson:"operation"` // tender, documents, rnp, sro, egrul
	Query     string    `bson:"query"`     // reg number or INN
	Status    int       `bson:"status"`    // 0 means the call never completed
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStorage keeps the query history with TTL-based expiry.
type MongoStorage struct {
	client *mongo.Client
	db     *mongo.Database
	ctx    context.Context
}

func NewMongoStorage(uri string, ttl time.Duration) (*MongoStorage, error) {
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	s := &MongoStorage{
		client: client,
		db:     client.Database("tenderbot"),
		ctx:    ctx,
	}
	if err := s.createIndexes(ttl); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStorage) createIndexes(ttl time.Duration) error {
	coll := s.db.Collection("query_history")
	_, err := coll.Indexes().CreateMany(s.ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "api", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds()))},
	})
	return err
}

// SaveQuery records one user lookup.
func (s *MongoStorage) SaveQuery(rec QueryRecord) error {
	rec.CreatedAt = time.Now().UTC()
	_, err := s.db.Collection("query_history").InsertOne(s.ctx, rec)
	return err
}

// CountByAPI returns the number of stored lookups per upstream API.
func (s *MongoStorage) CountByAPI() (map[string]int64, error) {
	coll := s.db.Collection("query_history")
	counts := make(map[string]int64)
	for _, api := range []string{"TENDERGURU", "DAMIA"} {
		n, err := coll.CountDocuments(s.ctx, bson.D{{Key: "api", Value: api}})
		if err != nil {
			return nil, err
		}
		counts[api] = n
	}
	return counts, nil
}

func (s *MongoStorage) Close() error {
	return s.client.Disconnect(s.ctx)
}
