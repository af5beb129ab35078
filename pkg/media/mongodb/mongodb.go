// Package mongodb stores media metadata in a MongoDB collection using the
// official v2 driver. Documents are keyed by a string uuid.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/mediakit/pkg/media"
)

// CollectionName is the default collection for media documents.
const CollectionName = "media"

// Collection is the subset of *mongo.Collection used by Records.
type Collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error)
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
}

type document struct {
	ID        string    `bson:"_id"`
	OwnerType string    `bson:"owner_type"`
	OwnerID   string    `bson:"owner_id"`
	Filename  string    `bson:"filename"`
	MIME      string    `bson:"mime"`
	Size      *int64    `bson:"size"`
	Group     string    `bson:"group"`
	Name      string    `bson:"name,omitempty"`
	Alt       string    `bson:"alt,omitempty"`
	Title     string    `bson:"title,omitempty"`
	Status    bool      `bson:"status"`
	Weight    int       `bson:"weight"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func fromRecord(rec media.Record) document {
	return document{
		ID:        rec.ID,
		OwnerType: rec.OwnerType,
		OwnerID:   rec.OwnerID,
		Filename:  rec.Filename,
		MIME:      rec.MIME,
		Size:      rec.Size,
		Group:     rec.Group,
		Name:      rec.Name,
		Alt:       rec.Alt,
		Title:     rec.Title,
		Status:    rec.Status,
		Weight:    rec.Weight,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (d document) record() media.Record {
	return media.Record{
		ID:        d.ID,
		OwnerType: d.OwnerType,
		OwnerID:   d.OwnerID,
		Filename:  d.Filename,
		MIME:      d.MIME,
		Size:      d.Size,
		Group:     d.Group,
		Name:      d.Name,
		Alt:       d.Alt,
		Title:     d.Title,
		Status:    d.Status,
		Weight:    d.Weight,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// Records implements media.Records on a MongoDB collection.
type Records struct {
	coll Collection
	now  func() time.Time
}

// Option configures Records.
type Option func(*Records)

// WithClock sets the time source for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Records) {
		r.now = now
	}
}

// New stores records in db's media collection.
func New(db *mongo.Database, opts ...Option) *Records {
	return NewWithCollection(db.Collection(CollectionName), opts...)
}

// NewWithCollection stores records in coll.
func NewWithCollection(coll Collection, opts ...Option) *Records {
	r := &Records{
		coll: coll,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// timestamp matches the millisecond precision of BSON dates so a record
// reads back equal to what was written.
func (r *Records) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

// Insert stores rec under a new uuid.
func (r *Records) Insert(ctx context.Context, rec *media.Record) error {
	now := r.timestamp()
	doc := fromRecord(*rec)
	doc.ID = uuid.NewString()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert media: %w", err)
	}

	rec.ID = doc.ID
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// FindByID returns media.ErrNotFound for unknown ids.
func (r *Records) FindByID(ctx context.Context, id string) (*media.Record, error) {
	var doc document
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, media.ErrNotFound
		}
		return nil, fmt.Errorf("get media: %w", err)
	}

	rec := doc.record()
	return &rec, nil
}

// Find lists the owner's records ordered by weight, creation time and id.
func (r *Records) Find(ctx context.Context, owner media.OwnerRef, group string) ([]media.Record, error) {
	cur, err := r.coll.Find(ctx, OwnerFilter(owner, group), options.Find().SetSort(sortOrder))
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}

	recs := make([]media.Record, 0, len(docs))
	for _, d := range docs {
		recs = append(recs, d.record())
	}
	return recs, nil
}

// Count returns the number of records in (owner, group).
func (r *Records) Count(ctx context.Context, owner media.OwnerRef, group string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, OwnerFilter(owner, group))
	if err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return int(n), nil
}

// CountByFilename returns the number of documents sharing filename. It is
// served by the filename index.
func (r *Records) CountByFilename(ctx context.Context, filename string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "filename", Value: filename}})
	if err != nil {
		return 0, fmt.Errorf("count media by filename: %w", err)
	}
	return int(n), nil
}

// Update sets name, alt, title and weight. Empty strings unset the field.
func (r *Records) Update(ctx context.Context, rec *media.Record) error {
	now := r.timestamp()

	set := bson.D{
		{Key: "weight", Value: rec.Weight},
		{Key: "updated_at", Value: now},
	}
	unset := bson.D{}
	for _, f := range []struct {
		key string
		val string
	}{{"name", rec.Name}, {"alt", rec.Alt}, {"title", rec.Title}} {
		if f.val == "" {
			unset = append(unset, bson.E{Key: f.key, Value: ""})
			continue
		}
		set = append(set, bson.E{Key: f.key, Value: f.val})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: rec.ID}}, update)
	if err != nil {
		return fmt.Errorf("update media: %w", err)
	}
	if res.MatchedCount == 0 {
		return media.ErrNotFound
	}

	rec.UpdatedAt = now
	return nil
}

// Delete removes one document.
func (r *Records) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if res.DeletedCount == 0 {
		return media.ErrNotFound
	}
	return nil
}

var sortOrder = bson.D{
	{Key: "weight", Value: 1},
	{Key: "created_at", Value: 1},
	{Key: "_id", Value: 1},
}

// OwnerFilter selects the owner's documents in group, or in every group
// when group is empty.
func OwnerFilter(owner media.OwnerRef, group string) bson.D {
	filter := bson.D{
		{Key: "owner_type", Value: owner.Type},
		{Key: "owner_id", Value: owner.ID},
	}
	if group != "" {
		filter = append(filter, bson.E{Key: "group", Value: group})
	}
	return filter
}

// IndexModels returns the indexes the collection needs.
func IndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_type", Value: 1},
				{Key: "owner_id", Value: 1},
				{Key: "group", Value: 1},
				{Key: "weight", Value: 1},
			},
			Options: options.Index().SetName("owner_group_weight"),
		},
		{
			Keys:    bson.D{{Key: "filename", Value: 1}},
			Options: options.Index().SetName("filename"),
		},
	}
}

// EnsureIndexes creates the indexes from IndexModels. It is idempotent.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	if _, err := coll.Indexes().CreateMany(ctx, IndexModels()); err != nil {
		return fmt.Errorf("create media indexes: %w", err)
	}
	return nil
}

var _ media.Records = (*Records)(nil)
