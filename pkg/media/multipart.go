package media

import (
	"fmt"
	"mime/multipart"

	"github.com/dmitrymomot/mediakit/pkg/file"
)

// UploadFromFileHeader opens a multipart part as an Upload. The MIME type is
// sniffed from the content, not taken from the client. The caller must call
// the returned close function once the upload has been saved.
func UploadFromFileHeader(fh *multipart.FileHeader) (Upload, func() error, error) {
	if fh == nil {
		return Upload{}, nil, fmt.Errorf("%w: %w", ErrInvalidUpload, file.ErrNilFileHeader)
	}

	f, err := fh.Open()
	if err != nil {
		return Upload{}, nil, fmt.Errorf("%w: %v", file.ErrFailedToOpenFile, err)
	}

	mimeType, err := file.DetectMIMEType(f)
	if err != nil {
		_ = f.Close()
		return Upload{}, nil, err
	}

	return Upload{
		Name:     fh.Filename,
		MIMEType: mimeType,
		Size:     fh.Size,
		Body:     f,
	}, f.Close, nil
}
