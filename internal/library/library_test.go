package library

import (
	"testing"
)

func TestItemTypeIsFolder(t *testing.T) {
	tests := []struct {
		itemType ItemType
		want     bool
	}{
		{TypeAggregateFolder, true},
		{TypeCollectionFolder, true},
		{TypeSeries, true},
		{TypeSeason, true},
		{TypeMovie, true},
		{TypeEpisode, false},
		{TypeAudio, false},
		{TypePhoto, false},
	}

	for _, tt := range tests {
		if got := tt.itemType.IsFolder(); got != tt.want {
			t.Errorf("%s.IsFolder() = %v, want %v", tt.itemType, got, tt.want)
		}
	}
}

func TestUpdateTypeString(t *testing.T) {
	tests := []struct {
		u    UpdateType
		want string
	}{
		{UpdateNone, "None"},
		{UpdateImageUpdate, "ImageUpdate"},
		{UpdateMetadataImport | UpdateImageUpdate, "MetadataImport|ImageUpdate"},
		{UpdateUnspecified | UpdateMetadataEdit, "Unspecified|MetadataEdit"},
	}

	for _, tt := range tests {
		if got := tt.u.String(); got != tt.want {
			t.Errorf("UpdateType(%d).String() = %q, want %q", tt.u, got, tt.want)
		}
	}
}

func TestOutcomeMerge(t *testing.T) {
	var o Outcome
	if o.Changed {
		t.Fatal("zero Outcome reports Changed")
	}

	o = o.Merge(UpdateNone)
	if !o.Changed || o.Type != UpdateNone {
		t.Errorf("after merging None: %+v, want Changed with no type bits", o)
	}

	o = o.Merge(UpdateMetadataImport).Merge(UpdateImageUpdate)
	if !o.Type.Has(UpdateMetadataImport | UpdateImageUpdate) {
		t.Errorf("Type = %v, want MetadataImport|ImageUpdate", o.Type)
	}
	if o.Type.Has(UpdateUnspecified) {
		t.Errorf("Type = %v, unexpected Unspecified bit", o.Type)
	}
}

func TestOutcomeCombine(t *testing.T) {
	a := Outcome{}.Merge(UpdateImageUpdate)

	if got := a.Combine(Outcome{}); got != a {
		t.Errorf("Combine(unchanged) = %+v, want %+v", got, a)
	}
	if got := (Outcome{}).Combine(a); got != a {
		t.Errorf("Outcome{}.Combine(a) = %+v, want %+v", got, a)
	}
}

func TestItemLocations(t *testing.T) {
	root := &Item{Type: TypeAggregateFolder}
	if locs := root.Locations(); len(locs) != 0 {
		t.Errorf("root Locations() = %v, want none", locs)
	}

	collection := &Item{Type: TypeCollectionFolder, Path: "/a", PhysicalLocations: []string{"/a", "/b"}}
	if locs := collection.Locations(); len(locs) != 2 {
		t.Errorf("collection Locations() = %v, want 2 entries", locs)
	}

	season := &Item{Type: TypeSeason, Path: "/a/Show/Season 1"}
	if locs := season.Locations(); len(locs) != 1 || locs[0] != season.Path {
		t.Errorf("season Locations() = %v, want [%s]", locs, season.Path)
	}
}

func TestItemProviderData(t *testing.T) {
	item := &Item{}

	if _, ok := item.ProviderInfo("tmdb"); ok {
		t.Error("ProviderInfo on empty item reported ok")
	}

	item.SetProviderInfo("tmdb", ProviderInfo{LastRefreshStatus: StatusFailure})
	info, ok := item.ProviderInfo("tmdb")
	if !ok || info.LastRefreshStatus != StatusFailure {
		t.Errorf("ProviderInfo(tmdb) = %+v, %v", info, ok)
	}

	item.SetProviderID("tmdb", "1399")
	if item.ProviderID("tmdb") != "1399" {
		t.Errorf("ProviderID(tmdb) = %q, want 1399", item.ProviderID("tmdb"))
	}
	item.SetProviderID("tmdb", "")
	if _, ok := item.ProviderIDs["tmdb"]; ok {
		t.Error("SetProviderID with empty value did not delete the id")
	}
}
