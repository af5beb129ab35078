package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage implements Storage for the local filesystem.
// All operations are confined to baseDir to prevent path traversal attacks.
type LocalStorage struct {
	baseDir       string        // Absolute path - all files stored within this directory
	baseURL       string        // URL prefix for serving files (e.g., "/files/")
	uploadTimeout time.Duration // Optional timeout to prevent hanging uploads
	dirPerm       os.FileMode
	filePerm      os.FileMode
}

// LocalOption defines a function that configures LocalStorage.
type LocalOption func(*LocalStorage)

// WithLocalUploadTimeout sets the timeout for write operations.
// If not set, relies on context deadline from caller.
func WithLocalUploadTimeout(timeout time.Duration) LocalOption {
	return func(s *LocalStorage) {
		s.uploadTimeout = timeout
	}
}

// WithPermissions overrides the directory and file modes used for new entries.
func WithPermissions(dirPerm, filePerm os.FileMode) LocalOption {
	return func(s *LocalStorage) {
		if dirPerm != 0 {
			s.dirPerm = dirPerm
		}
		if filePerm != 0 {
			s.filePerm = filePerm
		}
	}
}

// NewLocalStorage creates a new local filesystem storage.
// baseDir is resolved to absolute path and created if it doesn't exist.
// baseURL is used for generating public URLs (e.g., "/files/").
func NewLocalStorage(baseDir, baseURL string, opts ...LocalOption) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, ErrInvalidConfig
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve base directory: %v", ErrFailedToGetAbsolutePath, err)
	}

	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	s := &LocalStorage{
		baseDir:  absBaseDir,
		baseURL:  baseURL,
		dirPerm:  0755,
		filePerm: 0644,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(absBaseDir, s.dirPerm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	return s, nil
}

// Write stores r at path. The file is created exclusively: an existing file
// at path yields ErrFileExists and is left untouched. Partial files are
// removed on failure.
func (s *LocalStorage) Write(ctx context.Context, path string, r io.Reader) (int64, error) {
	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	absPath, err := s.resolvePath(path)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), s.dirPerm); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	dst, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.filePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return 0, fmt.Errorf("%w: %v", ErrFailedToCreateFile, err)
	}

	written, err := copyWithContext(ctx, dst, r)
	if closeErr := dst.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: %v", ErrFailedToWriteFile, closeErr)
	}
	if err != nil {
		_ = os.Remove(absPath)
		return 0, err
	}

	return written, nil
}

// copyWithContext copies src to dst in 32KB chunks, checking ctx between reads
// so a large upload can be abandoned early.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var written int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			nw, writeErr := dst.Write(buf[:n])
			if writeErr != nil {
				return written, fmt.Errorf("%w: %v", ErrFailedToWriteFile, writeErr)
			}
			written += int64(nw)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("%w: %v", ErrFailedToReadFile, readErr)
		}
	}
}

// Move renames src to dst. Both must resolve inside the base directory.
func (s *LocalStorage) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	absSrc, absDst, err := s.resolvePair(src, dst)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absDst), s.dirPerm); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	// os.Rename replaces an existing target on unix, so claim the name first.
	if err := os.Link(absSrc, absDst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileExists, dst)
		}
		// Hard links are not available everywhere (e.g. across devices).
		if _, statErr := os.Lstat(absDst); statErr == nil {
			return fmt.Errorf("%w: %s", ErrFileExists, dst)
		}
		if err := os.Rename(absSrc, absDst); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToMoveFile, err)
		}
		return nil
	}

	if err := os.Remove(absSrc); err != nil {
		_ = os.Remove(absDst)
		return fmt.Errorf("%w: %v", ErrFailedToMoveFile, err)
	}

	return nil
}

// Copy duplicates src at dst without touching an existing dst.
func (s *LocalStorage) Copy(ctx context.Context, src, dst string) error {
	absSrc, _, err := s.resolvePair(src, dst)
	if err != nil {
		return err
	}

	in, err := os.Open(absSrc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer func() { _ = in.Close() }()

	if _, err := s.Write(ctx, dst, in); err != nil {
		if errors.Is(err, ErrFileExists) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrFailedToCopyFile, err)
	}

	return nil
}

// Delete removes a single file.
// Verifies the target is a file, not a directory, to prevent accidental data loss.
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	absPath, err := s.resolvePath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("%w: %v", ErrFailedToStatPath, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	if err := os.Remove(absPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteFile, err)
	}

	return nil
}

// MakeDir creates path and any missing parents.
func (s *LocalStorage) MakeDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	absPath, err := s.resolvePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(absPath, s.dirPerm); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	return nil
}

// Exists checks if a file or directory exists.
// Returns false for invalid paths or on context cancellation.
func (s *LocalStorage) Exists(ctx context.Context, path string) bool {
	if ctx.Err() != nil {
		return false
	}

	absPath, err := s.resolvePath(path)
	if err != nil {
		return false
	}

	_, err = os.Stat(absPath)
	return err == nil
}

// URL returns the public URL for a file.
func (s *LocalStorage) URL(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))

	if strings.HasPrefix(path, "/") {
		return path
	}

	return s.baseURL + path
}

// resolvePair resolves a source and destination and requires the source to be
// an existing regular file and the destination to be free.
func (s *LocalStorage) resolvePair(src, dst string) (string, string, error) {
	absSrc, err := s.resolvePath(src)
	if err != nil {
		return "", "", err
	}
	absDst, err := s.resolvePath(dst)
	if err != nil {
		return "", "", err
	}

	info, err := os.Stat(absSrc)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("%w: %s", ErrFileNotFound, src)
		}
		return "", "", fmt.Errorf("%w: %v", ErrFailedToStatPath, err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("%w: %s", ErrIsDirectory, src)
	}

	if _, err := os.Lstat(absDst); err == nil {
		return "", "", fmt.Errorf("%w: %s", ErrFileExists, dst)
	}

	return absSrc, absDst, nil
}

// resolvePath validates and resolves a path within the base directory.
// Rejects anything that would escape baseDir after cleaning.
func (s *LocalStorage) resolvePath(path string) (string, error) {
	absPath, err := filepath.Abs(filepath.Join(s.baseDir, filepath.Clean(path)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToGetAbsolutePath, err)
	}

	if !strings.HasPrefix(absPath, s.baseDir+string(filepath.Separator)) && absPath != s.baseDir {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return absPath, nil
}
