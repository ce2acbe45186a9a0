package storage

import "context"

// Object describes a single stored object inside a folder.
type Object struct {
	// Key is the full object key including the folder prefix.
	Key string
	// Name is the object name relative to its folder.
	Name string
	Size int64
}

// FolderLister lists the objects of a remote folder.
type FolderLister interface {
	ListFolder(ctx context.Context, folderID string) ([]Object, error)
}

// RemoteStore is the object storage surface used for source images and
// remote copies of generated assets.
type RemoteStore interface {
	FolderLister
	Upload(ctx context.Context, folderID, name string, data []byte, contentType string) (string, error)
	Rename(ctx context.Context, folderID, oldName, newName string) error
	ObjectURL(folderID, name string) string
}
