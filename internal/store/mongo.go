package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scimbridge/scimbridge/internal/scim"
)

// MongoStore implements Store on a MongoDB database, one collection per
// resource kind. Where predicates translate directly to bson filters.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore wraps the given database. Callers own the client lifecycle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// EnsureIndexes creates the unique indexes backing the bridge's uniqueness
// constraints (id and the primary-name attribute of each kind).
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for _, kind := range []scim.Kind{scim.KindUsers, scim.KindGroups} {
		col := s.col(kind)
		for _, field := range uniqueFields(kind) {
			idx := mongo.IndexModel{
				Keys:    bson.D{{Key: field, Value: 1}},
				Options: options.Index().SetUnique(true),
			}
			if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
				return &FaultError{Err: err}
			}
		}
	}
	return nil
}

func (s *MongoStore) col(kind scim.Kind) *mongo.Collection {
	return s.db.Collection(string(kind))
}

func (s *MongoStore) FindMany(ctx context.Context, kind scim.Kind, where Where) ([]map[string]any, error) {
	cur, err := s.col(kind).Find(ctx, bson.M(where))
	if err != nil {
		return nil, &FaultError{Err: err}
	}
	defer cur.Close(ctx)
	out := []map[string]any{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, &FaultError{Err: err}
		}
		out = append(out, clean(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, &FaultError{Err: err}
	}
	return out, nil
}

func (s *MongoStore) FindFirst(ctx context.Context, kind scim.Kind, where Where) (map[string]any, error) {
	var doc bson.M
	if err := s.col(kind).FindOne(ctx, bson.M(where)).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, &FaultError{Err: err}
	}
	return clean(doc), nil
}

func (s *MongoStore) Create(ctx context.Context, kind scim.Kind, doc map[string]any) (map[string]any, error) {
	if _, err := s.col(kind).InsertOne(ctx, bson.M(doc)); err != nil {
		return nil, writeError(kind, doc, err)
	}
	return doc, nil
}

func (s *MongoStore) Update(ctx context.Context, kind scim.Kind, where Where, set map[string]any) (map[string]any, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated bson.M
	err := s.col(kind).FindOneAndUpdate(ctx, bson.M(where), bson.M{"$set": bson.M(set)}, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, writeError(kind, set, err)
	}
	return clean(updated), nil
}

func (s *MongoStore) Delete(ctx context.Context, kind scim.Kind, where Where) error {
	res, err := s.col(kind).DeleteOne(ctx, bson.M(where))
	if err != nil {
		return &FaultError{Err: err}
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// writeError classifies a driver write error per the bridge taxonomy.
func writeError(kind scim.Kind, doc map[string]any, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{Fields: conflictFields(kind, doc)}
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return &FaultError{Err: err}
	}
	var we mongo.WriteException
	var ce mongo.CommandError
	if errors.As(err, &we) || errors.As(err, &ce) {
		return &FieldError{Err: err}
	}
	return &FaultError{Err: err}
}

// clean strips the driver-managed _id before the document crosses the port
// boundary; the bridge addresses records by their logical id field.
func clean(doc bson.M) map[string]any {
	delete(doc, "_id")
	return map[string]any(doc)
}
