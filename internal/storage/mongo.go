package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sessionValue struct {
	SessionID string    `bson:"session_id"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type MongoStore struct {
	collection *mongo.Collection
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("session_values"),
	}
}

func (m *MongoStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	var doc sessionValue

	filter := bson.M{"session_id": sessionID, "key": key}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session value: %w", err)
	}

	return []byte(doc.Value), nil
}

func (m *MongoStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	filter := bson.M{"session_id": sessionID, "key": key}
	update := bson.M{"$set": sessionValue{
		SessionID: sessionID,
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now(),
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert session value: %w", err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, sessionID, key string) error {
	filter := bson.M{"session_id": sessionID, "key": key}

	if _, err := m.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete session value: %w", err)
	}
	return nil
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.collection.Database().Client().Disconnect(ctx)
}
