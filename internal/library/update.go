package library

import "strings"

// UpdateType describes what kind of change a provider made to an item.
// Values combine with bitwise OR.
type UpdateType uint32

const (
	UpdateNone             UpdateType = 0
	UpdateUnspecified      UpdateType = 1 << 0
	UpdateMetadataImport   UpdateType = 1 << 1
	UpdateMetadataDownload UpdateType = 1 << 2
	UpdateImageUpdate      UpdateType = 1 << 3
	UpdateMetadataEdit     UpdateType = 1 << 4
)

var updateTypeNames = []struct {
	flag UpdateType
	name string
}{
	{UpdateUnspecified, "Unspecified"},
	{UpdateMetadataImport, "MetadataImport"},
	{UpdateMetadataDownload, "MetadataDownload"},
	{UpdateImageUpdate, "ImageUpdate"},
	{UpdateMetadataEdit, "MetadataEdit"},
}

// Has reports whether every bit of flag is set.
func (u UpdateType) Has(flag UpdateType) bool {
	return u&flag == flag
}

func (u UpdateType) String() string {
	if u == UpdateNone {
		return "None"
	}
	var parts []string
	for _, n := range updateTypeNames {
		if u&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Outcome is the aggregate result of refreshing one item. The zero value
// means no provider changed anything, which differs from a change whose
// type happens to be UpdateNone.
type Outcome struct {
	Changed bool       `json:"changed"`
	Type    UpdateType `json:"type"`
}

// Merge folds one provider's update type into the outcome.
func (o Outcome) Merge(t UpdateType) Outcome {
	return Outcome{Changed: true, Type: o.Type | t}
}

// Combine folds another outcome into o.
func (o Outcome) Combine(other Outcome) Outcome {
	if !other.Changed {
		return o
	}
	return o.Merge(other.Type)
}
