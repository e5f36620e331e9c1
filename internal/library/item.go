package library

import (
	"time"

	"github.com/google/uuid"
)

// ItemType is the concrete kind of a catalog item.
type ItemType string

const (
	// TypeAggregateFolder is the synthetic catalog root. There is exactly one.
	TypeAggregateFolder ItemType = "AggregateFolder"
	// TypeCollectionFolder is a top-level library folder backed by one or more physical locations.
	TypeCollectionFolder ItemType = "CollectionFolder"
	TypeFolder           ItemType = "Folder"
	TypeSeries           ItemType = "Series"
	TypeSeason           ItemType = "Season"
	TypeEpisode          ItemType = "Episode"
	TypeMovie            ItemType = "Movie"
	TypeMusicAlbum       ItemType = "MusicAlbum"
	TypeAudio            ItemType = "Audio"
	TypeVideo            ItemType = "Video"
	TypePhoto            ItemType = "Photo"
)

// IsFolder reports whether items of this type contain children.
func (t ItemType) IsFolder() bool {
	switch t {
	case TypeAggregateFolder, TypeCollectionFolder, TypeFolder, TypeSeries, TypeSeason, TypeMusicAlbum, TypeMovie:
		return true
	default:
		return false
	}
}

// RefreshStatus is the outcome stamped on an item after a provider run.
type RefreshStatus string

const (
	StatusSuccess             RefreshStatus = "success"
	StatusFailure             RefreshStatus = "failure"
	StatusCompletedWithErrors RefreshStatus = "completed_with_errors"
)

// ProviderInfo is the per-provider freshness record attached to an item.
type ProviderInfo struct {
	LastRefreshed     time.Time     `json:"lastRefreshed"`
	LastRefreshStatus RefreshStatus `json:"lastRefreshStatus"`
	ProviderVersion   string        `json:"providerVersion,omitempty"`
	// FileSystemStamp is a provider-defined digest of the files it read,
	// used to notice changes without re-fetching.
	FileSystemStamp string `json:"fileSystemStamp,omitempty"`
}

// Item is one entry in the library tree.
type Item struct {
	ID       uuid.UUID `json:"id"`
	ParentID uuid.UUID `json:"parentId"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Type     ItemType  `json:"type"`

	// PhysicalLocations lists every directory backing a collection folder.
	PhysicalLocations []string `json:"physicalLocations,omitempty"`

	// DontFetchMeta opts the item out of internet providers.
	DontFetchMeta bool `json:"dontFetchMeta"`

	ProviderIDs        map[string]string `json:"providerIds,omitempty"`
	Overview           string            `json:"overview,omitempty"`
	ProductionYear     int               `json:"productionYear,omitempty"`
	Container          string            `json:"container,omitempty"`
	Size               int64             `json:"size,omitempty"`
	PrimaryImagePath   string            `json:"primaryImagePath,omitempty"`
	BackdropImagePaths []string          `json:"backdropImagePaths,omitempty"`
	DateCreated        time.Time         `json:"dateCreated"`
	DateModified       time.Time         `json:"dateModified"`

	ProviderData map[string]ProviderInfo `json:"providerData,omitempty"`
}

// IsFolder reports whether the item can have children.
func (i *Item) IsFolder() bool {
	return i.Type.IsFolder()
}

// IsRoot reports whether the item is the synthetic catalog root.
func (i *Item) IsRoot() bool {
	return i.Type == TypeAggregateFolder
}

// Locations returns the directories backing the item: its physical
// locations for collection folders, otherwise its own path.
func (i *Item) Locations() []string {
	if len(i.PhysicalLocations) > 0 {
		return i.PhysicalLocations
	}
	if i.Path == "" {
		return nil
	}
	return []string{i.Path}
}

// ProviderInfo returns the freshness record for the named provider.
func (i *Item) ProviderInfo(name string) (ProviderInfo, bool) {
	info, ok := i.ProviderData[name]
	return info, ok
}

// SetProviderInfo replaces the freshness record for the named provider.
func (i *Item) SetProviderInfo(name string, info ProviderInfo) {
	if i.ProviderData == nil {
		i.ProviderData = make(map[string]ProviderInfo)
	}
	i.ProviderData[name] = info
}

// ProviderID returns an external id such as "tmdb", or "".
func (i *Item) ProviderID(name string) string {
	return i.ProviderIDs[name]
}

// SetProviderID records an external id.
func (i *Item) SetProviderID(name, value string) {
	if i.ProviderIDs == nil {
		i.ProviderIDs = make(map[string]string)
	}
	if value == "" {
		delete(i.ProviderIDs, name)
		return
	}
	i.ProviderIDs[name] = value
}
