package media

import "errors"

// Error kinds returned by Store. Causes are attached with errors.Join, so
// callers can match both the kind and the underlying backend error.
var (
	// ErrStorageWrite means a blob write, move or copy failed. No metadata
	// row was created or changed by the failing operation.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrStorageDelete means a blob could not be removed. The metadata row
	// is kept so the pair can be retried.
	ErrStorageDelete = errors.New("storage delete failed")
	// ErrMetadata means the metadata store failed. After a successful blob
	// write the blob is left in place.
	ErrMetadata = errors.New("metadata store failed")
	// ErrNotFound is returned for unknown record ids. Records
	// implementations return it from FindByID, Update and Delete.
	ErrNotFound = errors.New("media not found")
	// ErrNameResolution means no free filename was found within the probe limit.
	ErrNameResolution = errors.New("failed to resolve a free filename")

	ErrInvalidUpload = errors.New("invalid upload")
	ErrInvalidOwner  = errors.New("invalid owner reference")
	ErrInvalidConfig = errors.New("invalid media configuration")
)
