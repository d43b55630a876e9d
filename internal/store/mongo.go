package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"omnia/internal/catalog"
)

const defaultMongoDatabase = "omnia"

// MongoStore keeps each document kind in its own MongoDB collection with a
// unique index on the unique key field. Primary keys are ObjectID hex strings.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database

	mu      sync.Mutex
	indexed map[string]bool
}

var _ catalog.DocumentStore = (*MongoStore)(nil)

// NewMongoStore connects to uri. The database is taken from the URI path,
// defaulting to "omnia".
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	name, err := mongoDatabaseName(uri)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &MongoStore{
		client:  client,
		db:      client.Database(name),
		indexed: make(map[string]bool),
	}, nil
}

func mongoDatabaseName(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parsing mongodb uri: %w", err)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		name = defaultMongoDatabase
	}
	return name, nil
}

// collection returns the MongoDB collection for kind, creating its unique
// key index on first use.
func (s *MongoStore) collection(ctx context.Context, kind string) (*mongo.Collection, error) {
	coll := s.db.Collection(kind)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexed[kind] {
		return coll, nil
	}
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: catalog.KeyField, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring unique index on %s: %w", kind, err)
	}
	s.indexed[kind] = true
	return coll, nil
}

func (s *MongoStore) Insert(ctx context.Context, kind string, doc catalog.Document) (string, error) {
	coll, err := s.collection(ctx, kind)
	if err != nil {
		return "", err
	}
	res, err := coll.InsertOne(ctx, withoutID(doc))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("inserting %s %s: %w", kind, doc.UniqueKey(), catalog.ErrDuplicateKey)
		}
		return "", fmt.Errorf("inserting %s %s: %w", kind, doc.UniqueKey(), err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("inserting %s: unexpected id type %T", kind, res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoStore) Get(ctx context.Context, kind string, id string) (catalog.Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var raw bson.M
	err = s.db.Collection(kind).FindOne(ctx, bson.M{"_id": oid}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting %s %s: %w", kind, id, err)
	}
	return fromBSON(raw), nil
}

func (s *MongoStore) Replace(ctx context.Context, kind string, id string, doc catalog.Document) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, catalog.ErrNotFound)
	}
	coll, err := s.collection(ctx, kind)
	if err != nil {
		return err
	}
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": oid}, withoutID(doc))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("replacing %s %s: %w", kind, id, catalog.ErrDuplicateKey)
		}
		return fmt.Errorf("replacing %s %s: %w", kind, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, catalog.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, kind string, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, catalog.ErrNotFound)
	}
	res, err := s.db.Collection(kind).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, catalog.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, kind string, preds []catalog.Predicate) ([]catalog.Document, error) {
	filter, err := mongoFilter(preds)
	if err != nil {
		return nil, err
	}
	cursor, err := s.db.Collection(kind).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", kind, err)
	}
	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("finding %s: %w", kind, err)
	}
	docs := make([]catalog.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

func (s *MongoStore) Count(ctx context.Context, kind string, preds []catalog.Predicate) (int, error) {
	filter, err := mongoFilter(preds)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(kind).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", kind, err)
	}
	return int(n), nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// mongoFilter renders predicates as a MongoDB filter. Equality on an array
// field already matches any element; case folding uses an anchored
// case-insensitive regex.
func mongoFilter(preds []catalog.Predicate) (bson.D, error) {
	filter := bson.D{}
	for _, p := range preds {
		if p.Field == catalog.IDField {
			oid, err := primitive.ObjectIDFromHex(fmt.Sprint(p.Value))
			if err != nil {
				// No document can carry an invalid ObjectID.
				oid = primitive.NilObjectID
			}
			filter = append(filter, bson.E{Key: "_id", Value: oid})
			continue
		}
		if !catalog.ValidField(p.Field) {
			return nil, fmt.Errorf("%w: invalid field name %q", catalog.ErrValidation, p.Field)
		}
		value := p.Value
		if s, ok := value.(string); ok && p.FoldCase {
			value = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
		}
		filter = append(filter, bson.E{Key: p.Field, Value: value})
	}
	return filter, nil
}

func withoutID(doc catalog.Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if k == catalog.IDField {
			continue
		}
		out[k] = v
	}
	return out
}

// fromBSON converts a decoded BSON document to the JSON-compatible shape the
// catalog expects. Integers become json.Number, as the SQLite store returns them.
func fromBSON(raw bson.M) catalog.Document {
	doc := make(catalog.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			if oid, ok := v.(primitive.ObjectID); ok {
				doc[catalog.IDField] = oid.Hex()
				continue
			}
		}
		doc[k] = normalizeBSON(v)
	}
	return doc
}

func normalizeBSON(v any) any {
	switch x := v.(type) {
	case bson.M:
		m := make(map[string]any, len(x))
		for k, item := range x {
			m[k] = normalizeBSON(item)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = normalizeBSON(e.Value)
		}
		return m
	case bson.A:
		items := make([]any, len(x))
		for i, item := range x {
			items[i] = normalizeBSON(item)
		}
		return items
	case int32:
		return json.Number(strconv.FormatInt(int64(x), 10))
	case int64:
		return json.Number(strconv.FormatInt(x, 10))
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
