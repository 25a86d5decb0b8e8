package persistence

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB database. Each document's
// TableName is its collection name.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore creates a Store over db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// Create inserts doc.
func (s *MongoStore) Create(ctx context.Context, doc Document) error {
	if _, err := s.db.Collection(doc.TableName()).InsertOne(ctx, doc); err != nil {
		return translateMongoError("create "+doc.TableName(), err)
	}
	return nil
}

// FindOne decodes the first match of q into dest.
func (s *MongoStore) FindOne(ctx context.Context, q Query, dest Document) error {
	opts := options.FindOne()
	if sort := mongoSort(q); sort != nil {
		opts.SetSort(sort)
	}
	err := s.db.Collection(dest.TableName()).FindOne(ctx, mongoFilter(q), opts).Decode(dest)
	if err != nil {
		return translateMongoError("find "+dest.TableName(), err)
	}
	return nil
}

// Find decodes every match of q into dest, a pointer to a slice.
func (s *MongoStore) Find(ctx context.Context, q Query, dest any) error {
	collection, err := collectionOf(dest)
	if err != nil {
		return shared.NewStoreError("list", err)
	}

	opts := options.Find()
	if sort := mongoSort(q); sort != nil {
		opts.SetSort(sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return translateMongoError("list "+collection, err)
	}
	if err := cursor.All(ctx, dest); err != nil {
		return translateMongoError("list "+collection, err)
	}
	return nil
}

// Update replaces the document matching q with doc.
func (s *MongoStore) Update(ctx context.Context, q Query, doc Document) error {
	if len(q.Where) == 0 {
		return shared.NewStoreError("update "+doc.TableName(), errors.New("refusing update without conditions"))
	}
	result, err := s.db.Collection(doc.TableName()).ReplaceOne(ctx, mongoFilter(q), doc)
	if err != nil {
		return translateMongoError("update "+doc.TableName(), err)
	}
	if result.MatchedCount == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes every match of q from doc's collection.
func (s *MongoStore) Delete(ctx context.Context, q Query, doc Document) (int64, error) {
	if len(q.Where) == 0 {
		return 0, shared.NewStoreError("delete "+doc.TableName(), errors.New("refusing delete without conditions"))
	}
	result, err := s.db.Collection(doc.TableName()).DeleteMany(ctx, mongoFilter(q))
	if err != nil {
		return 0, translateMongoError("delete "+doc.TableName(), err)
	}
	return result.DeletedCount, nil
}

// Transaction runs fn against the same store. Multi-document transactions
// need a replica set, so writes inside fn are applied one by one; callers
// order their writes so a partial failure leaves no dangling references.
func (s *MongoStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return fn(s)
}

// EnsureIndexes creates the unique and lookup indexes the relational
// schema declares in its migrations.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		"clinics": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		"clinic_settings": {
			{Keys: bson.D{{Key: "clinic_id", Value: 1}}, Options: unique},
		},
		"patients": {
			{Keys: bson.D{{Key: "clinic_id", Value: 1}, {Key: "external_id", Value: 1}}, Options: unique},
		},
		"reports": {
			{Keys: bson.D{{Key: "clinic_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "clinic_id", Value: 1}, {Key: "filename", Value: 1}}},
		},
		"report_images": {
			{Keys: bson.D{{Key: "report_id", Value: 1}, {Key: "position", Value: 1}}},
		},
	}
	for collection, models := range indexes {
		if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
	}
	return nil
}

func mongoFilter(q Query) bson.M {
	filter := make(bson.M, len(q.Where))
	for k, v := range q.Where {
		if k == "id" {
			k = "_id"
		}
		filter[k] = v
	}
	return filter
}

func mongoSort(q Query) bson.D {
	col := q.sortColumn()
	if col == "" {
		return nil
	}
	dir := 1
	if q.Desc {
		dir = -1
	}
	return bson.D{{Key: col, Value: dir}}
}

var documentType = reflect.TypeOf((*Document)(nil)).Elem()

// collectionOf resolves the collection of a *[]T or *[]*T destination.
func collectionOf(dest any) (string, error) {
	t := reflect.TypeOf(dest)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Slice {
		return "", fmt.Errorf("destination must be a pointer to a slice, got %T", dest)
	}
	elem := t.Elem().Elem()
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	ptr := reflect.New(elem)
	if !ptr.Type().Implements(documentType) {
		return "", fmt.Errorf("%s does not implement Document", elem)
	}
	return ptr.Interface().(Document).TableName(), nil
}

func translateMongoError(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return shared.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return shared.ErrAlreadyExists
	default:
		return shared.NewStoreError(op, err)
	}
}

// uuidSubtype is the BSON binary subtype for RFC 4122 UUIDs.
const uuidSubtype = 0x04

var uuidType = reflect.TypeOf(uuid.UUID{})

// NewRegistry returns a BSON registry that stores uuid.UUID as binary
// subtype 4 instead of an array of 16 integers.
func NewRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(uuidType, bsoncodec.ValueEncoderFunc(encodeUUID))
	reg.RegisterTypeDecoder(uuidType, bsoncodec.ValueDecoderFunc(decodeUUID))
	return reg
}

func encodeUUID(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != uuidType {
		return bsoncodec.ValueEncoderError{Name: "UUIDEncodeValue", Types: []reflect.Type{uuidType}, Received: val}
	}
	id := val.Interface().(uuid.UUID)
	return vw.WriteBinaryWithSubtype(id[:], uuidSubtype)
}

func decodeUUID(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != uuidType {
		return bsoncodec.ValueDecoderError{Name: "UUIDDecodeValue", Types: []reflect.Type{uuidType}, Received: val}
	}

	switch vr.Type() {
	case bsontype.Binary:
		data, subtype, err := vr.ReadBinary()
		if err != nil {
			return err
		}
		if subtype != uuidSubtype {
			return fmt.Errorf("unsupported binary subtype %#x for UUID", subtype)
		}
		id, err := uuid.FromBytes(data)
		if err != nil {
			return err
		}
		val.Set(reflect.ValueOf(id))
		return nil
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
		val.Set(reflect.ValueOf(uuid.Nil))
		return nil
	default:
		return fmt.Errorf("cannot decode %v into a UUID", vr.Type())
	}
}
