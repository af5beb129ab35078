package file

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
)

// Storage is a blob backend addressed by slash-separated relative paths.
// Writes never overwrite: Write, Move and Copy fail with ErrFileExists
// when the destination is taken.
type Storage interface {
	// Exists checks if a file or directory exists.
	Exists(ctx context.Context, path string) bool
	// Write stores the content of r at path and returns the number of bytes written.
	Write(ctx context.Context, path string, r io.Reader) (int64, error)
	// Move renames src to dst within the backend.
	Move(ctx context.Context, src, dst string) error
	// Copy duplicates src at dst.
	Copy(ctx context.Context, src, dst string) error
	// Delete removes a single file.
	Delete(ctx context.Context, path string) error
	// MakeDir ensures the directory exists. Key-based stores treat it as a no-op.
	MakeDir(ctx context.Context, path string) error
	// URL returns the public URL for a file.
	URL(path string) string
}

// GetExtension returns the file extension including the dot.
//
// Example:
//
//	ext := file.GetExtension(fh) // ".jpg"
func GetExtension(fh *multipart.FileHeader) string {
	if fh == nil {
		return ""
	}
	return filepath.Ext(fh.Filename)
}

// GetMIMEType detects the MIME type by reading the file content.
// Uses http.DetectContentType which reads the first 512 bytes to identify file types
// based on magic bytes rather than trusting file extensions (prevents spoofing).
func GetMIMEType(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrNilFileHeader
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer func() { _ = f.Close() }()

	return DetectMIMEType(f)
}

// DetectMIMEType sniffs the content type from the first 512 bytes of r.
// Seekable readers are rewound so the caller can read the content again.
func DetectMIMEType(r io.Reader) (string, error) {
	// 512 bytes is the maximum http.DetectContentType reads
	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("%w: %v", ErrFailedToReadFile, err)
	}

	if seeker, ok := r.(io.Seeker); ok {
		_, _ = seeker.Seek(0, io.SeekStart)
	}

	return http.DetectContentType(buffer[:n]), nil
}

// ValidateSize checks if the file size is within the allowed limit.
// A non-positive maxBytes disables the check.
//
// Example:
//
//	if err := file.ValidateSize(fh.Size, 5<<20); err != nil { // 5MB limit
//	    return err
//	}
func ValidateSize(size, maxBytes int64) error {
	if maxBytes <= 0 {
		return nil
	}
	if size > maxBytes {
		return fmt.Errorf("file size %d bytes exceeds %d bytes limit: %w", size, maxBytes, ErrFileTooLarge)
	}
	return nil
}

// ValidateMIMEType checks if mimeType is in the allowed list.
// Pass no types to allow all MIME types (useful for generic file storage).
// Parameters such as "; charset=utf-8" are ignored.
func ValidateMIMEType(mimeType string, allowedTypes ...string) error {
	if len(allowedTypes) == 0 {
		return nil
	}

	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.TrimSpace(base)
	if slices.Contains(allowedTypes, base) {
		return nil
	}

	return fmt.Errorf("MIME type %s not in allowed types %v: %w", mimeType, allowedTypes, ErrMIMETypeNotAllowed)
}

// SanitizeFilename removes any path components and dangerous characters from a filename
// to prevent path traversal attacks and other security issues.
// Returns "unnamed" for empty or special directory references.
//
// Example:
//
//	safe := file.SanitizeFilename("../../../etc/passwd") // Returns "passwd"
//	safe = file.SanitizeFilename("C:\\Windows\\file.txt") // Returns "file.txt"
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")

	if filename == "." || filename == ".." || filename == "" || filename == "/" {
		filename = "unnamed"
	}

	return filename
}
