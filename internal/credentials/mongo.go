package credentials

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// credentialDoc is the persisted form of one entry.
type credentialDoc struct {
	ID        string    `bson:"_id"`
	Origin    string    `bson:"origin"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore implements Store using a Mongo collection, one document per
// origin and key.
type MongoStore struct {
	col    *mongo.Collection
	origin string
}

func NewMongoStore(col *mongo.Collection, origin string) *MongoStore {
	return &MongoStore{col: col, origin: origin}
}

func (m *MongoStore) id(k Key) string {
	return m.origin + "|" + string(k)
}

func (m *MongoStore) Get(ctx context.Context, key Key) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	var doc credentialDoc
	if err := m.col.FindOne(ctx, bson.M{"_id": m.id(key)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, err
	}
	return doc.Value, true, nil
}

func (m *MongoStore) Set(ctx context.Context, key Key, value string) error {
	if err := checkSet(key, value); err != nil {
		return err
	}
	doc := credentialDoc{
		ID:        m.id(key),
		Origin:    m.origin,
		Key:       string(key),
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	_, err := m.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (m *MongoStore) Remove(ctx context.Context, key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := m.col.DeleteOne(ctx, bson.M{"_id": m.id(key)})
	return err
}
