package library

import (
	"context"
	"errors"
	"io/fs"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Store lookups that match nothing.
var ErrNotFound = errors.New("item not found")

// Store is the catalog: the persisted item tree.
type Store interface {
	// Root returns the synthetic aggregate folder, creating it if needed.
	Root(ctx context.Context) (*Item, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	// FindByPath matches an item's own path or any physical location of a
	// collection folder.
	FindByPath(ctx context.Context, path string) (*Item, error)
	Parent(ctx context.Context, item *Item) (*Item, error)
	Children(ctx context.Context, id uuid.UUID) ([]*Item, error)
	TopLevelFolders(ctx context.Context) ([]*Item, error)
	// ItemsUnder returns every item whose path lies strictly below dir.
	ItemsUnder(ctx context.Context, dir string) ([]*Item, error)
	Upsert(ctx context.Context, item *Item) error
	// Delete removes the item and all of its descendants.
	Delete(ctx context.Context, id uuid.UUID) error
	SaveProviderInfo(ctx context.Context, itemID uuid.UUID, provider string, info ProviderInfo) error
	// Exists reports whether the item's backing path is still on disk.
	// The root always exists.
	Exists(item *Item) bool
}

// Resolver classifies a filesystem entry under parent. It returns nil when
// the entry should not become a catalog item.
type Resolver interface {
	Resolve(path string, info fs.FileInfo, parent *Item) *Item
}

// ChildrenChanged reports items added to or removed from a folder.
type ChildrenChanged struct {
	Folder  *Item
	Added   []*Item
	Removed []*Item
}
