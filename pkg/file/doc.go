// Package file provides blob storage backends for uploaded files.
//
// The Storage interface is deliberately small: existence checks, exclusive
// writes, move, copy, delete, directory creation and public URLs. Two
// implementations are provided:
//   - LocalStorage: filesystem storage confined to a base directory
//   - S3Storage: AWS S3 and S3-compatible services (MinIO, Wasabi, etc.)
//
// # Write semantics
//
// Write, Move and Copy never replace an existing file. They return
// ErrFileExists instead, which lets callers that pick names optimistically
// detect a lost race and choose another name:
//
//	n, err := storage.Write(ctx, "uploads/post/photo.jpg", r)
//	if errors.Is(err, file.ErrFileExists) {
//		// pick another name and retry
//	}
//
// LocalStorage creates files with O_EXCL. S3Storage sends If-None-Match: *.
//
// # Usage
//
//	storage, err := file.NewLocalStorage("./public", "/")
//	if err != nil {
//		return err
//	}
//
//	if _, err := storage.Write(ctx, "uploads/avatar.png", src); err != nil {
//		return err
//	}
//	url := storage.URL("uploads/avatar.png") // "/uploads/avatar.png"
//
// Using S3 storage:
//
//	storage, err := file.NewS3Storage(ctx, file.S3Config{
//		Bucket: "my-bucket",
//		Region: "us-east-1",
//	})
//
// # Multipart helpers
//
// GetMIMEType sniffs the content of an uploaded part rather than trusting
// its extension. ValidateSize and ValidateMIMEType enforce upload limits and
// SanitizeFilename strips path components from client supplied names.
//
// # Error Handling
//
// S3-specific errors are mapped to generic file errors for consistency:
//   - NoSuchKey, NotFound -> ErrFileNotFound
//   - PreconditionFailed -> ErrFileExists
//   - AccessDenied -> ErrAccessDenied
//   - SlowDown, ServiceUnavailable -> ErrServiceUnavailable
package file
