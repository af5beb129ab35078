package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mediakit/pkg/media"
	"github.com/dmitrymomot/mediakit/pkg/media/redisstore"
)

var owner = media.Owner("post", 42)

func setup(t *testing.T) (*redisstore.Records, *miniredis.Miniredis, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := redisstore.New(client, redisstore.WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	return records, mr, &now
}

func insert(t *testing.T, r *redisstore.Records, filename, group string, weight int) media.Record {
	t.Helper()
	size := int64(len(filename))
	rec := &media.Record{
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		Filename:  filename,
		MIME:      "image/png",
		Size:      &size,
		Group:     group,
		Status:    true,
		Weight:    weight,
	}
	require.NoError(t, r.Insert(context.Background(), rec))
	return *rec
}

func TestRecords_InsertAndFind(t *testing.T) {
	t.Parallel()
	r, mr, _ := setup(t)
	ctx := context.Background()

	rec := insert(t, r, "post/a.png", "gallery", 0)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC), rec.CreatedAt)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	assert.True(t, mr.Exists("media:rec:"+rec.ID))
	members, err := mr.Members("media:group:post:42:gallery")
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ID}, members)

	got, err := r.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "post/a.png", got.Filename)
	require.NotNil(t, got.Size)
	assert.Equal(t, int64(10), *got.Size)
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))

	_, err = r.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestRecords_FindOrder(t *testing.T) {
	t.Parallel()
	r, _, _ := setup(t)
	ctx := context.Background()

	c := insert(t, r, "post/c.png", "gallery", 2)
	a := insert(t, r, "post/a.png", "gallery", 0)
	b1 := insert(t, r, "post/b1.png", "gallery", 1)
	b2 := insert(t, r, "post/b2.png", "gallery", 1)
	other := insert(t, r, "post/doc.pdf", "files", 0)

	recs, err := r.Find(ctx, owner, "gallery")
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	assert.Equal(t, []string{a.ID, b1.ID, b2.ID, c.ID}, ids)

	all, err := r.Find(ctx, owner, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Contains(t, []string{all[0].ID, all[1].ID}, other.ID)

	empty, err := r.Find(ctx, media.Owner("post", 1), "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	n, err := r.Count(ctx, owner, "gallery")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRecords_Update(t *testing.T) {
	t.Parallel()
	r, _, _ := setup(t)
	ctx := context.Background()

	rec := insert(t, r, "post/a.png", "gallery", 0)

	edit := rec
	edit.Title = "Cover"
	edit.Alt = "alt"
	edit.Weight = 5
	edit.Filename = "post/other.png"
	edit.Group = "elsewhere"
	require.NoError(t, r.Update(ctx, &edit))
	assert.True(t, edit.UpdatedAt.After(rec.UpdatedAt))

	got, err := r.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cover", got.Title)
	assert.Equal(t, "alt", got.Alt)
	assert.Equal(t, 5, got.Weight)
	assert.Equal(t, "post/a.png", got.Filename)
	assert.Equal(t, "gallery", got.Group)

	missing := media.Record{ID: "missing"}
	assert.ErrorIs(t, r.Update(ctx, &missing), media.ErrNotFound)
}

func TestRecords_Delete(t *testing.T) {
	t.Parallel()
	r, mr, _ := setup(t)
	ctx := context.Background()

	rec := insert(t, r, "post/a.png", "gallery", 0)
	keep := insert(t, r, "post/b.png", "gallery", 1)

	require.NoError(t, r.Delete(ctx, rec.ID))
	assert.False(t, mr.Exists("media:rec:"+rec.ID))

	members, err := mr.Members("media:owner:post:42")
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, members)

	n, err := r.Count(ctx, owner, "gallery")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, r.Delete(ctx, rec.ID), media.ErrNotFound)
}

func TestRecords_Prefix(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := redisstore.New(client, redisstore.WithPrefix("app1:"))
	rec := &media.Record{OwnerType: "user", OwnerID: "a b", Filename: "user/x", Group: "default"}
	require.NoError(t, r.Insert(context.Background(), rec))

	assert.True(t, mr.Exists("app1:rec:"+rec.ID))
	assert.True(t, mr.Exists("app1:group:user:a+b:default"))
	assert.True(t, mr.Exists("app1:file:user%2Fx"))
}

func TestRecords_ColonOwnersDoNotCollide(t *testing.T) {
	t.Parallel()
	r, _, _ := setup(t)
	ctx := context.Background()

	qualified := media.Owner("blog:post", 1)
	lookalike := media.Owner("blog", "post:1")

	rec := &media.Record{OwnerType: qualified.Type, OwnerID: qualified.ID, Filename: "post/a.png", Group: "default"}
	require.NoError(t, r.Insert(ctx, rec))

	recs, err := r.Find(ctx, lookalike, "")
	require.NoError(t, err)
	assert.Empty(t, recs)

	n, err := r.Count(ctx, lookalike, "default")
	require.NoError(t, err)
	assert.Zero(t, n)

	recs, err = r.Find(ctx, qualified, "default")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ID, recs[0].ID)
}

func TestRecords_CountByFilename(t *testing.T) {
	t.Parallel()
	r, _, _ := setup(t)
	ctx := context.Background()

	first := insert(t, r, "post/shared.png", "gallery", 0)
	insert(t, r, "post/shared.png", "cover", 0)
	insert(t, r, "post/other.png", "gallery", 1)

	n, err := r.CountByFilename(ctx, "post/shared.png")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, r.Delete(ctx, first.ID))
	n, err = r.CountByFilename(ctx, "post/shared.png")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.CountByFilename(ctx, "post/missing.png")
	require.NoError(t, err)
	assert.Zero(t, n)
}
