package media

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/mediakit/pkg/file"
	"github.com/dmitrymomot/mediakit/pkg/logger"
)

// maxWriteAttempts bounds how often a save re-resolves its name after the
// backend reports the chosen name was taken in the meantime.
const maxWriteAttempts = 3

// Store attaches files to owner records. Every call is one unit of work:
// blob first, then metadata. The two are not atomic; a metadata failure
// after a successful write leaves the blob behind.
type Store struct {
	blobs   Blobs
	records Records
	cfg     Config
	names   NamePolicy
	log     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger enables warnings for best-effort cleanups that fail.
// Without it the store logs nothing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the time source used by the unique rename strategy.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.names.Now = now
	}
}

// WithEntropy sets the random source used by the unique rename strategy.
func WithEntropy(r io.Reader) Option {
	return func(s *Store) {
		s.names.Entropy = r
	}
}

// WithTransliterator replaces the filename transform of the transliterate strategy.
func WithTransliterator(fn func(string) string) Option {
	return func(s *Store) {
		s.names.Transform = fn
	}
}

// New creates a Store over blobs and records.
func New(blobs Blobs, records Records, cfg Config, opts ...Option) (*Store, error) {
	if blobs == nil || records == nil {
		return nil, fmt.Errorf("%w: blobs and records are required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		blobs:   blobs,
		records: records,
		cfg:     cfg,
		names: NamePolicy{
			Strategy:  cfg.Rename,
			MaxProbes: cfg.MaxNameProbes,
		},
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Config returns the normalized configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Directory returns the owner's directory relative to the files directory:
// "" without sub directories, "post" by type, "post/42" by type and id.
func (s *Store) Directory(owner OwnerRef) string {
	switch {
	case s.cfg.SubDirectoriesByID:
		return path.Join(typeSegment(owner.Type), Transliterate(owner.ID))
	case s.cfg.SubDirectories:
		return typeSegment(owner.Type)
	default:
		return ""
	}
}

// typeSegment keeps the last component of a qualified type name,
// e.g. `App\Models\Post` or "blog.Post" become "post".
func typeSegment(typ string) string {
	if i := strings.LastIndexAny(typ, `\/.:`); i >= 0 {
		typ = typ[i+1:]
	}
	return Transliterate(typ)
}

// URL returns the public URL of the record's blob.
func (s *Store) URL(rec Record) string {
	return s.blobs.URL(s.blobPath(rec.Filename))
}

func (s *Store) blobPath(rel string) string {
	return path.Join(s.cfg.FilesDirectory, rel)
}

func (s *Store) group(g string) string {
	if g == "" {
		return s.cfg.DefaultGroup
	}
	return g
}

func (s *Store) validate(size int64, mimeType string) error {
	if err := file.ValidateSize(size, s.cfg.MaxFileSize); err != nil {
		return errors.Join(ErrInvalidUpload, err)
	}
	if err := file.ValidateMIMEType(mimeType, s.cfg.AllowedMIMETypes...); err != nil {
		return errors.Join(ErrInvalidUpload, err)
	}
	return nil
}

// Save writes up into the owner's directory and records it in group.
// In Single mode the group's existing attachments are removed first.
// The weight defaults to the number of records already in the group.
func (s *Store) Save(ctx context.Context, owner OwnerRef, up Upload, group string, mode Mode, attrs Attrs) (*Record, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if up.Body == nil {
		return nil, fmt.Errorf("%w: missing body", ErrInvalidUpload)
	}
	if err := s.validate(up.Size, up.MIMEType); err != nil {
		return nil, err
	}
	group = s.group(group)

	if mode == Single {
		s.clear(ctx, owner, group)
	}

	weight, err := s.weight(ctx, owner, group, attrs)
	if err != nil {
		return nil, err
	}

	dir := s.Directory(owner)
	if err := s.blobs.MakeDir(ctx, s.blobPath(dir)); err != nil {
		return nil, errors.Join(ErrStorageWrite, err)
	}

	desired := s.names.ResolveDesiredName(file.SanitizeFilename(up.Name))
	body := newReplayBody(up.Body)

	var written int64
	filename, err := s.place(ctx, dir, desired, func(dst string) error {
		r, ok := body.reader()
		if !ok {
			return errBodyConsumed
		}
		n, err := s.blobs.Write(ctx, dst, r)
		written = n
		return err
	})
	if err != nil {
		return nil, err
	}

	rec := &Record{
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		Filename:  filename,
		MIME:      up.MIMEType,
		Size:      &written,
		Group:     group,
		Status:    true,
		Weight:    weight,
	}
	attrs.apply(rec)

	return s.insert(ctx, rec)
}

// ImportFromRemoteKey attaches an object that already exists in the blob
// backend at rf.Key by moving it into the owner's directory.
func (s *Store) ImportFromRemoteKey(ctx context.Context, owner OwnerRef, rf RemoteFile, group string, mode Mode, attrs Attrs) (*Record, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if rf.Key == "" {
		return nil, fmt.Errorf("%w: missing remote key", ErrInvalidUpload)
	}
	var size int64
	if rf.Size != nil {
		size = *rf.Size
	}
	if err := s.validate(size, rf.ContentType); err != nil {
		return nil, err
	}
	group = s.group(group)

	if mode == Single {
		s.clear(ctx, owner, group)
	}

	weight, err := s.weight(ctx, owner, group, attrs)
	if err != nil {
		return nil, err
	}

	dir := s.Directory(owner)
	if err := s.blobs.MakeDir(ctx, s.blobPath(dir)); err != nil {
		return nil, errors.Join(ErrStorageWrite, err)
	}

	name := rf.Name
	if name == "" {
		name = path.Base(rf.Key)
	}
	desired := s.names.ResolveDesiredName(file.SanitizeFilename(name))

	filename, err := s.place(ctx, dir, desired, func(dst string) error {
		return s.blobs.Move(ctx, rf.Key, dst)
	})
	if err != nil {
		return nil, err
	}

	rec := &Record{
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		Filename:  filename,
		MIME:      rf.ContentType,
		Size:      rf.Size,
		Group:     group,
		Status:    true,
		Weight:    weight,
	}
	attrs.apply(rec)

	return s.insert(ctx, rec)
}

// Clone attaches a copy of src's metadata to owner. With CopyBlob the file
// is duplicated under a free name in the owner's directory.
func (s *Store) Clone(ctx context.Context, src Record, owner OwnerRef, opts CloneOptions) (*Record, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	group := src.Group
	if opts.Group != "" {
		group = opts.Group
	}
	group = s.group(group)

	weight, err := s.weight(ctx, owner, group, opts.Attrs)
	if err != nil {
		return nil, err
	}

	filename := src.Filename
	if opts.CopyBlob {
		dir := s.Directory(owner)
		if err := s.blobs.MakeDir(ctx, s.blobPath(dir)); err != nil {
			return nil, errors.Join(ErrStorageWrite, err)
		}
		filename, err = s.place(ctx, dir, path.Base(src.Filename), func(dst string) error {
			return s.blobs.Copy(ctx, s.blobPath(src.Filename), dst)
		})
		if err != nil {
			return nil, err
		}
	}

	rec := &Record{
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		Filename:  filename,
		MIME:      src.MIME,
		Size:      src.Size,
		Group:     group,
		Name:      src.Name,
		Alt:       src.Alt,
		Title:     src.Title,
		Status:    src.Status,
		Weight:    weight,
	}
	opts.Attrs.apply(rec)

	return s.insert(ctx, rec)
}

// UpdateMetadata changes name, alt, title and weight of a record. Filename,
// MIME type, size and group are never touched.
func (s *Store) UpdateMetadata(ctx context.Context, id string, attrs Attrs) error {
	rec, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	attrs.apply(rec)
	if err := s.records.Update(ctx, rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Join(ErrMetadata, err)
	}

	return nil
}

// Get returns a single record.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return s.find(ctx, id)
}

// List returns the owner's records ordered by weight. An empty group lists
// all groups. Each call queries the metadata store afresh.
func (s *Store) List(ctx context.Context, owner OwnerRef, group string) ([]Record, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	recs, err := s.records.Find(ctx, owner, group)
	if err != nil {
		return nil, errors.Join(ErrMetadata, err)
	}

	slices.SortStableFunc(recs, func(a, b Record) int {
		return cmp.Compare(a.Weight, b.Weight)
	})

	return recs, nil
}

// Delete removes the owner's records in group (all groups when empty) and
// their blobs. Failures do not stop the batch. The count covers rows
// actually removed; the error joins every failure.
func (s *Store) Delete(ctx context.Context, owner OwnerRef, group string) (int, error) {
	recs, err := s.List(ctx, owner, group)
	if err != nil {
		return 0, err
	}

	var (
		removed int
		errs    []error
	)
	for _, rec := range recs {
		if err := s.remove(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("media %s: %w", rec.ID, err))
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}

// DeleteByID removes one record and its blob. It reports false without an
// error when the id is unknown.
func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.remove(ctx, *rec); err != nil {
		return false, err
	}

	return true, nil
}

// remove deletes the blob, then the row. The row is only deleted when the
// blob is gone, either removed now or already missing. A blob still
// referenced by another record (a shared clone) is left in place.
func (s *Store) remove(ctx context.Context, rec Record) error {
	refs, err := s.records.CountByFilename(ctx, rec.Filename)
	if err != nil {
		return errors.Join(ErrMetadata, err)
	}

	if refs <= 1 {
		if err := s.blobs.Delete(ctx, s.blobPath(rec.Filename)); err != nil && !errors.Is(err, file.ErrFileNotFound) {
			return errors.Join(ErrStorageDelete, err)
		}
	}

	if err := s.records.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Join(ErrMetadata, err)
	}

	return nil
}

// clear empties a group before a Single save. It is best effort: failures
// are logged and the save goes ahead.
func (s *Store) clear(ctx context.Context, owner OwnerRef, group string) {
	n, err := s.Delete(ctx, owner, group)
	if err != nil {
		s.log.WarnContext(ctx, "failed to clear media group before overwrite",
			logger.Owner(owner.Type, owner.ID),
			logger.MediaGroup(group),
			slog.Int("removed", n),
			logger.Error(err),
		)
	}
}

func (s *Store) find(ctx context.Context, id string) (*Record, error) {
	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Join(ErrMetadata, err)
	}
	return rec, nil
}

func (s *Store) weight(ctx context.Context, owner OwnerRef, group string, attrs Attrs) (int, error) {
	if attrs.Weight != nil {
		return *attrs.Weight, nil
	}
	n, err := s.records.Count(ctx, owner, group)
	if err != nil {
		return 0, errors.Join(ErrMetadata, err)
	}
	return n, nil
}

func (s *Store) insert(ctx context.Context, rec *Record) (*Record, error) {
	if err := s.records.Insert(ctx, rec); err != nil {
		s.log.WarnContext(ctx, "media metadata insert failed, blob left in place",
			logger.Path(s.blobPath(rec.Filename)),
			logger.Error(err),
		)
		return nil, errors.Join(ErrMetadata, err)
	}
	return rec, nil
}

// existsIn adapts the blob backend to EnsureUnique for one directory.
func (s *Store) existsIn(ctx context.Context, dir string) func(string) bool {
	return func(name string) bool {
		return s.blobs.Exists(ctx, s.blobPath(path.Join(dir, name)))
	}
}

// place resolves a free name in dir and hands its blob path to put. A put
// that loses the name to a concurrent writer is retried with a new name.
func (s *Store) place(ctx context.Context, dir, desired string, put func(dst string) error) (string, error) {
	for attempt := 1; ; attempt++ {
		name, err := s.names.EnsureUnique(desired, s.existsIn(ctx, dir))
		if err != nil {
			return "", err
		}
		filename := path.Join(dir, name)

		err = put(s.blobPath(filename))
		if err == nil {
			return filename, nil
		}
		if errors.Is(err, file.ErrFileExists) && attempt < maxWriteAttempts {
			continue
		}
		return "", errors.Join(ErrStorageWrite, err)
	}
}

var errBodyConsumed = errors.New("upload body was consumed by a conflicting write and cannot be replayed")

// replayBody hands the upload to the backend again after a write lost its
// name to a concurrent writer. Seekable bodies are rewound; other bodies can
// only be replayed if the failed write never read from them.
type replayBody struct {
	r      io.Reader
	seeker io.Seeker
	start  int64
	read   bool
}

func newReplayBody(r io.Reader) *replayBody {
	b := &replayBody{r: r}
	if sk, ok := r.(io.Seeker); ok {
		if off, err := sk.Seek(0, io.SeekCurrent); err == nil {
			b.seeker, b.start = sk, off
		}
	}
	return b
}

// reader returns the body for the next attempt. Seekable bodies are passed
// through unwrapped so backends can size them.
func (b *replayBody) reader() (io.Reader, bool) {
	if b.seeker != nil {
		if _, err := b.seeker.Seek(b.start, io.SeekStart); err != nil {
			return nil, false
		}
		return b.r, true
	}
	if b.read {
		return nil, false
	}
	return b, true
}

func (b *replayBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if n > 0 {
		b.read = true
	}
	return n, err
}
