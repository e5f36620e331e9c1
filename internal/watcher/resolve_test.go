package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"

	"media-library/internal/library"
)

// fakeCatalog is an in-memory catalog keyed by path.
type fakeCatalog struct {
	mu      sync.Mutex
	byPath  map[string]*library.Item
	byID    map[uuid.UUID]*library.Item
	missing map[uuid.UUID]bool
	root    *library.Item
}

func newFakeCatalog() *fakeCatalog {
	root := &library.Item{ID: uuid.New(), Type: library.TypeAggregateFolder, Name: "root"}
	return &fakeCatalog{
		byPath:  make(map[string]*library.Item),
		byID:    map[uuid.UUID]*library.Item{root.ID: root},
		missing: make(map[uuid.UUID]bool),
		root:    root,
	}
}

func (c *fakeCatalog) add(parent *library.Item, typ library.ItemType, path string, locations ...string) *library.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := &library.Item{
		ID:                uuid.New(),
		ParentID:          parent.ID,
		Name:              filepath.Base(path),
		Path:              path,
		Type:              typ,
		PhysicalLocations: locations,
	}
	c.byID[item.ID] = item
	for _, loc := range item.Locations() {
		c.byPath[loc] = item
	}
	return item
}

func (c *fakeCatalog) markMissing(item *library.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missing[item.ID] = true
}

func (c *fakeCatalog) FindByPath(_ context.Context, path string) (*library.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.byPath[path]; ok {
		return item, nil
	}
	return nil, library.ErrNotFound
}

func (c *fakeCatalog) Parent(_ context.Context, item *library.Item) (*library.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if parent, ok := c.byID[item.ParentID]; ok {
		return parent, nil
	}
	return nil, library.ErrNotFound
}

func (c *fakeCatalog) TopLevelFolders(context.Context) ([]*library.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*library.Item
	for _, item := range c.byID {
		if item.ParentID == c.root.ID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *fakeCatalog) Exists(item *library.Item) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.missing[item.ID]
}

// recordingDispatcher records dispatched work.
type recordingDispatcher struct {
	mu       sync.Mutex
	rescans  int
	changed  []string
	failFor  string
	panicFor string
	notify   chan struct{}
}

func (d *recordingDispatcher) QueueFullRescan() {
	d.mu.Lock()
	d.rescans++
	d.mu.Unlock()
	d.signal()
}

func (d *recordingDispatcher) ChangedExternally(_ context.Context, item *library.Item) error {
	if item.Path == d.panicFor {
		panic("refresh exploded")
	}
	d.mu.Lock()
	d.changed = append(d.changed, item.Path)
	d.mu.Unlock()
	d.signal()
	if item.Path == d.failFor {
		return errors.New("io error")
	}
	return nil
}

func (d *recordingDispatcher) signal() {
	if d.notify == nil {
		return
	}
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *recordingDispatcher) changedPaths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := append([]string(nil), d.changed...)
	sort.Strings(out)
	return out
}

func (d *recordingDispatcher) rescanCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rescans
}

// tvCatalog builds root > TV (collection) > Show > Season 1 > ep01.mkv.
func tvCatalog() (*fakeCatalog, map[string]*library.Item) {
	c := newFakeCatalog()
	tv := c.add(c.root, library.TypeCollectionFolder, "/config/TV", "/media/tv")
	show := c.add(tv, library.TypeSeries, "/media/tv/Show")
	season := c.add(show, library.TypeSeason, "/media/tv/Show/Season 1")
	episode := c.add(season, library.TypeEpisode, "/media/tv/Show/Season 1/ep01.mkv")
	return c, map[string]*library.Item{"tv": tv, "show": show, "season": season, "episode": episode}
}

func paths(items []*library.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Path)
	}
	sort.Strings(out)
	return out
}

func TestResolveAffected(t *testing.T) {
	tests := []struct {
		name    string
		changed []string
		missing []string
		want    []string
	}{
		{
			name:    "known file resolves to its folder",
			changed: []string{"/media/tv/Show/Season 1/ep01.mkv"},
			want:    []string{"/media/tv/Show/Season 1"},
		},
		{
			name:    "changed folder resolves to its parent",
			changed: []string{"/media/tv/Show/Season 1"},
			want:    []string{"/media/tv/Show"},
		},
		{
			name:    "new file resolves to its folder",
			changed: []string{"/media/tv/Show/Season 1/ep02.mkv"},
			want:    []string{"/media/tv/Show/Season 1"},
		},
		{
			name:    "new nested folder resolves to nearest known ancestor",
			changed: []string{"/media/tv/Show/Season 2/ep01.mkv"},
			want:    []string{"/media/tv/Show"},
		},
		{
			name:    "deleted item walks up to a live parent",
			changed: []string{"/media/tv/Show/Season 1/ep01.mkv"},
			missing: []string{"episode", "season"},
			want:    []string{"/media/tv/Show"},
		},
		{
			name:    "physical location of a collection folder",
			changed: []string{"/media/tv/Other Show"},
			want:    []string{"/config/TV"},
		},
		{
			name: "duplicates collapse",
			changed: []string{
				"/media/tv/Show/Season 1/ep02.mkv",
				"/media/tv/Show/Season 1/ep03.mkv",
				"/media/tv/Show/Season 1/ep01.mkv",
			},
			want: []string{"/media/tv/Show/Season 1"},
		},
		{
			name:    "outside every library",
			changed: []string{"/srv/other/file.mkv"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, items := tvCatalog()
			for _, key := range tt.missing {
				c.markMissing(items[key])
			}
			got := paths(ResolveAffected(context.Background(), c, tt.changed))
			if len(got) != len(tt.want) {
				t.Fatalf("ResolveAffected() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("ResolveAffected()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestResolveAffectedReachesRoot(t *testing.T) {
	c, items := tvCatalog()
	c.markMissing(items["tv"])
	c.markMissing(items["show"])

	got := ResolveAffected(context.Background(), c, []string{"/media/tv/Show"})
	if len(got) != 1 || !got[0].IsRoot() {
		t.Fatalf("ResolveAffected() = %v, want the root", paths(got))
	}
}

func TestDispatchRootQueuesSingleRescan(t *testing.T) {
	c, items := tvCatalog()
	d := &recordingDispatcher{}

	Dispatch(context.Background(), d, []*library.Item{items["season"], c.root, items["show"]}, 4)

	if d.rescanCount() != 1 {
		t.Errorf("rescans = %d, want 1", d.rescanCount())
	}
	if n := len(d.changedPaths()); n != 0 {
		t.Errorf("item refreshes = %d, want 0 when a rescan is queued", n)
	}
}

func TestDispatchErrorsDoNotAbortSiblings(t *testing.T) {
	_, items := tvCatalog()
	d := &recordingDispatcher{
		failFor:  "/media/tv/Show",
		panicFor: "/media/tv/Show/Season 1/ep01.mkv",
	}

	Dispatch(context.Background(), d, []*library.Item{items["show"], items["episode"], items["season"], items["tv"]}, 1)

	want := []string{"/config/TV", "/media/tv/Show", "/media/tv/Show/Season 1"}
	got := d.changedPaths()
	if len(got) != len(want) {
		t.Fatalf("changed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("changed[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if d.rescanCount() != 0 {
		t.Errorf("rescans = %d, want 0", d.rescanCount())
	}
}
