// Package redisstore implements media.Records on Redis.
//
// Each record is a JSON string under {prefix}rec:{id}. Two sets index it:
// {prefix}owner:{type}:{id} holds every record id of an owner and
// {prefix}group:{type}:{id}:{group} the ids of one group, and
// {prefix}file:{filename} the ids sharing one blob. Key segments are
// query-escaped so a ':' inside an owner type or id cannot reach another
// owner's set. Ordering is done client side, so Find is meant for the small
// per-owner sets attachments form.
package redisstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/mediakit/pkg/media"
)

// DefaultPrefix namespaces every key.
const DefaultPrefix = "media:"

// Records implements media.Records.
type Records struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// Option configures Records.
type Option func(*Records)

func WithPrefix(prefix string) Option {
	return func(r *Records) { r.prefix = prefix }
}

func WithClock(now func() time.Time) Option {
	return func(r *Records) { r.now = now }
}

// New creates a store over client, a *redis.Client or *redis.ClusterClient.
func New(client redis.Cmdable, opts ...Option) *Records {
	r := &Records{
		client: client,
		prefix: DefaultPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ media.Records = (*Records)(nil)

func (r *Records) recordKey(id string) string {
	return r.prefix + "rec:" + id
}

func (r *Records) ownerKey(owner media.OwnerRef) string {
	return r.prefix + "owner:" + segment(owner.Type) + ":" + segment(owner.ID)
}

func (r *Records) groupKey(owner media.OwnerRef, group string) string {
	return r.prefix + "group:" + segment(owner.Type) + ":" + segment(owner.ID) + ":" + segment(group)
}

func (r *Records) fileKey(filename string) string {
	return r.prefix + "file:" + segment(filename)
}

// segment escapes ':' along with every other reserved byte.
func segment(s string) string {
	return url.QueryEscape(s)
}

// Insert writes the record and both index entries in one MULTI block.
func (r *Records) Insert(ctx context.Context, rec *media.Record) error {
	stored := *rec
	stored.ID = uuid.NewString()
	stored.CreatedAt = r.now()
	stored.UpdatedAt = stored.CreatedAt

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal media: %w", err)
	}

	owner := stored.Owner()
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.recordKey(stored.ID), data, 0)
		p.SAdd(ctx, r.ownerKey(owner), stored.ID)
		p.SAdd(ctx, r.groupKey(owner, stored.Group), stored.ID)
		p.SAdd(ctx, r.fileKey(stored.Filename), stored.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}

	rec.ID, rec.CreatedAt, rec.UpdatedAt = stored.ID, stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (r *Records) FindByID(ctx context.Context, id string) (*media.Record, error) {
	data, err := r.client.Get(ctx, r.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, media.ErrNotFound
		}
		return nil, fmt.Errorf("get media: %w", err)
	}

	var rec media.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal media %s: %w", id, err)
	}
	return &rec, nil
}

// Find loads the indexed ids and sorts by weight, creation time and id.
// Ids whose record vanished between the two reads are skipped.
func (r *Records) Find(ctx context.Context, owner media.OwnerRef, group string) ([]media.Record, error) {
	key := r.ownerKey(owner)
	if group != "" {
		key = r.groupKey(owner, group)
	}

	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	out := make([]media.Record, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var rec media.Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal media %s: %w", ids[i], err)
		}
		out = append(out, rec)
	}

	slices.SortFunc(out, func(a, b media.Record) int {
		return cmp.Or(
			cmp.Compare(a.Weight, b.Weight),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (r *Records) Count(ctx context.Context, owner media.OwnerRef, group string) (int, error) {
	n, err := r.client.SCard(ctx, r.groupKey(owner, group)).Result()
	if err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return int(n), nil
}

func (r *Records) CountByFilename(ctx context.Context, filename string) (int, error) {
	n, err := r.client.SCard(ctx, r.fileKey(filename)).Result()
	if err != nil {
		return 0, fmt.Errorf("count media by filename: %w", err)
	}
	return int(n), nil
}

// Update rewrites the editable fields. The write uses SET XX, so a record
// deleted since it was read is reported as not found.
func (r *Records) Update(ctx context.Context, rec *media.Record) error {
	stored, err := r.FindByID(ctx, rec.ID)
	if err != nil {
		return err
	}

	stored.Name = rec.Name
	stored.Alt = rec.Alt
	stored.Title = rec.Title
	stored.Weight = rec.Weight
	stored.UpdatedAt = r.now()

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal media: %w", err)
	}

	ok, err := r.client.SetXX(ctx, r.recordKey(rec.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("update media: %w", err)
	}
	if !ok {
		return media.ErrNotFound
	}

	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *Records) Delete(ctx context.Context, id string) error {
	rec, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	var del *redis.IntCmd
	owner := rec.Owner()
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, r.recordKey(id))
		p.SRem(ctx, r.ownerKey(owner), id)
		p.SRem(ctx, r.groupKey(owner, rec.Group), id)
		p.SRem(ctx, r.fileKey(rec.Filename), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if del.Val() == 0 {
		return media.ErrNotFound
	}
	return nil
}
