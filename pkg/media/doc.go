// Package media attaches uploaded files to arbitrary application records.
//
// A Store combines a blob backend (Blobs, implemented by package file) with a
// metadata store (Records, implemented by the memory, postgres and mongodb
// sub-packages). Owners are referenced polymorphically through OwnerRef, so
// any entity can carry attachments without embedding storage logic.
//
// # Saving
//
//	store, err := media.New(blobs, records, cfg)
//	rec, err := store.Save(ctx, media.Owner("post", 42), media.Upload{
//		Name: "Summer Photo.JPG",
//		Body: r,
//	}, "gallery", media.Multiple, media.Attrs{})
//	// rec.Filename == "post/summer_photo.jpg"
//
// A save resolves the stored name with the configured NamePolicy, writes the
// blob and then inserts the metadata row. The write never replaces an
// existing blob: names are probed as photo.jpg, photo_1.jpg, photo_2.jpg and
// the backend itself refuses to overwrite, so a concurrent writer that wins
// the name forces a fresh probe instead of clobbering the file.
//
// In Single mode the group's existing attachments are deleted before the new
// file is written, which is how avatar-style fields are replaced.
//
// # Layout
//
// Blobs live at FilesDirectory/[type/[id/]]name. Record.Filename is stored
// relative to FilesDirectory; Store.URL turns it into a public URL.
//
// # Consistency
//
// Storage and metadata are not updated atomically. A failed insert after a
// successful write leaves an orphaned blob (ErrMetadata). Deletion removes
// the blob first and only deletes the row once the blob is gone, so a failed
// blob removal (ErrStorageDelete) leaves the record in place for a retry.
// Weights default to the group's current record count, which two concurrent
// saves can both observe.
//
// # Errors
//
// Every error carries one of ErrStorageWrite, ErrStorageDelete, ErrMetadata,
// ErrNotFound, ErrNameResolution or ErrInvalidUpload, matchable with errors.Is.
package media
