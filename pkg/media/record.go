package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// OwnerRef points at the entity an attachment belongs to.
// Type is the host's model name, ID its primary key in string form.
type OwnerRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Owner builds an OwnerRef from any printable id.
func Owner(typ string, id any) OwnerRef {
	return OwnerRef{Type: typ, ID: fmt.Sprint(id)}
}

// Validate reports an owner reference without type or id.
func (o OwnerRef) Validate() error {
	if strings.TrimSpace(o.Type) == "" || strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("%w: type and id are required", ErrInvalidOwner)
	}
	return nil
}

func (o OwnerRef) String() string {
	return o.Type + "#" + o.ID
}

// Mode decides whether a save replaces the group's attachments or adds to them.
type Mode int

const (
	// Multiple keeps existing attachments in the group.
	Multiple Mode = iota
	// Single removes existing attachments in the group before saving.
	Single
)

// ParseMode maps "single" and "multiple" (default) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "multiple":
		return Multiple, nil
	case "single":
		return Single, nil
	default:
		return Multiple, fmt.Errorf("%w: unknown mode %q", ErrInvalidUpload, s)
	}
}

func (m Mode) String() string {
	if m == Single {
		return "single"
	}
	return "multiple"
}

// Record is the persisted metadata of one attachment.
type Record struct {
	ID        string    `json:"id"`
	OwnerType string    `json:"owner_type"`
	OwnerID   string    `json:"owner_id"`
	Filename  string    `json:"filename"` // relative to the files directory
	MIME      string    `json:"mime"`
	Size      *int64    `json:"size"`
	Group     string    `json:"group"`
	Name      string    `json:"name,omitempty"`
	Alt       string    `json:"alt,omitempty"`
	Title     string    `json:"title,omitempty"`
	Status    bool      `json:"status"`
	Weight    int       `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Owner returns the record's owner reference.
func (r Record) Owner() OwnerRef {
	return OwnerRef{Type: r.OwnerType, ID: r.OwnerID}
}

// DisplayTitle returns the title, falling back to the stored file's basename.
func (r Record) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return path.Base(r.Filename)
}

// Attrs carries the editable metadata. Nil fields are left unchanged on
// update and take their defaults on save.
type Attrs struct {
	Name   *string `json:"name,omitempty"`
	Alt    *string `json:"alt,omitempty"`
	Title  *string `json:"title,omitempty"`
	Weight *int    `json:"weight,omitempty"`
}

func (a Attrs) apply(rec *Record) {
	if a.Name != nil {
		rec.Name = *a.Name
	}
	if a.Alt != nil {
		rec.Alt = *a.Alt
	}
	if a.Title != nil {
		rec.Title = *a.Title
	}
	if a.Weight != nil {
		rec.Weight = *a.Weight
	}
}

// Upload describes an incoming file. Size is advisory (0 when unknown);
// the stored size is the number of bytes actually written.
type Upload struct {
	Name     string
	MIMEType string
	Size     int64
	Body     io.Reader
}

// RemoteFile is an object that already sits in the blob backend under Key,
// for example after a direct-to-bucket upload.
type RemoteFile struct {
	Name        string
	ContentType string
	Size        *int64
	Key         string
}

// CloneOptions controls Store.Clone.
type CloneOptions struct {
	// CopyBlob duplicates the blob into the new owner's directory. Without
	// it the clone references the source blob, which is kept until the last
	// record pointing at it is deleted.
	CopyBlob bool
	// Group overrides the source record's group.
	Group string
	Attrs Attrs
}

// Blobs is the storage backend the store writes to. file.LocalStorage and
// file.S3Storage implement it. Write, Move and Copy must fail with
// file.ErrFileExists rather than replace an existing blob.
type Blobs interface {
	Exists(ctx context.Context, path string) bool
	Write(ctx context.Context, path string, r io.Reader) (int64, error)
	Move(ctx context.Context, src, dst string) error
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, path string) error
	MakeDir(ctx context.Context, path string) error
	URL(path string) string
}

// Records persists media metadata.
type Records interface {
	// Insert stores rec and fills ID, CreatedAt and UpdatedAt.
	Insert(ctx context.Context, rec *Record) error
	// FindByID returns ErrNotFound for unknown ids.
	FindByID(ctx context.Context, id string) (*Record, error)
	// Find lists the owner's records, all groups when group is empty,
	// ordered by weight ascending.
	Find(ctx context.Context, owner OwnerRef, group string) ([]Record, error)
	// Count returns the number of records in (owner, group).
	Count(ctx context.Context, owner OwnerRef, group string) (int, error)
	// Update persists name, alt, title and weight of rec and refreshes UpdatedAt.
	Update(ctx context.Context, rec *Record) error
	// CountByFilename returns the number of records pointing at filename.
	CountByFilename(ctx context.Context, filename string) (int, error)
	// Delete removes the row, returning ErrNotFound when it does not exist.
	Delete(ctx context.Context, id string) error
}
