package resolver

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"media-library/internal/library"
	"media-library/internal/mediatypes"
)

var (
	seasonDirPattern = regexp.MustCompile(`(?i)^(season|series|staffel|saison)[\s._-]*\d{1,4}$`)
	nameYearPattern  = regexp.MustCompile(`^(.*?)[\s._]*[\(\[](\d{4})[\)\]]\s*$`)
)

// skipDirs are directories that never hold library content.
var skipDirs = map[string]bool{
	"@eaDir":                    true,
	"#recycle":                  true,
	"$RECYCLE.BIN":              true,
	"lost+found":                true,
	"System Volume Information": true,
	"metadata":                  true,
	".trickplay":                true,
}

// artworkNames are image basenames that decorate their folder rather than
// being photos in their own right.
var artworkNames = map[string]bool{
	"folder":    true,
	"poster":    true,
	"cover":     true,
	"backdrop":  true,
	"fanart":    true,
	"banner":    true,
	"logo":      true,
	"thumb":     true,
	"landscape": true,
	"clearart":  true,
}

// Resolver classifies filesystem entries into catalog items using path and
// extension heuristics.
type Resolver struct {
	now func() time.Time
}

// New creates a Resolver.
func New() *Resolver {
	return &Resolver{now: time.Now}
}

// Resolve implements library.Resolver.
func (r *Resolver) Resolve(path string, info fs.FileInfo, parent *library.Item) *library.Item {
	name := info.Name()
	if IsIgnoredName(name) {
		return nil
	}

	var itemType library.ItemType
	if info.IsDir() {
		itemType = r.classifyDir(path, name, parent)
	} else {
		itemType = r.classifyFile(name, parent)
	}
	if itemType == "" {
		return nil
	}

	item := &library.Item{
		ID:           uuid.New(),
		Name:         name,
		Path:         path,
		Type:         itemType,
		DateCreated:  r.now(),
		DateModified: info.ModTime(),
	}
	if parent != nil {
		item.ParentID = parent.ID
	}
	if !info.IsDir() {
		item.Size = info.Size()
		item.Name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	switch itemType {
	case library.TypeMovie, library.TypeSeries, library.TypeMusicAlbum:
		item.Name, item.ProductionYear = ParseNameYear(item.Name)
	}
	return item
}

// IsIgnoredName reports whether an entry with this base name is never an
// item: hidden files and well-known system directories.
func IsIgnoredName(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name]
}

// IsSeasonDir reports whether a directory name looks like a season folder.
func IsSeasonDir(name string) bool {
	return seasonDirPattern.MatchString(name) || strings.EqualFold(name, "specials")
}

// IsArtwork reports whether a file is folder artwork such as poster.jpg or
// backdrop2.png.
func IsArtwork(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if mediatypes.GetFileType(ext) != mediatypes.FileTypeImage {
		return false
	}
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	base = strings.TrimRight(base, "0123456789")
	return artworkNames[base]
}

// ParseNameYear splits "Name (2010)" into its name and year.
func ParseNameYear(name string) (string, int) {
	m := nameYearPattern.FindStringSubmatch(name)
	if m == nil {
		return name, 0
	}
	year, err := strconv.Atoi(m[2])
	if err != nil || m[1] == "" {
		return name, 0
	}
	return strings.TrimSpace(m[1]), year
}

func (r *Resolver) classifyDir(path, name string, parent *library.Item) library.ItemType {
	parentType := library.ItemType("")
	if parent != nil {
		parentType = parent.Type
	}

	if IsSeasonDir(name) && parentType != library.TypeAggregateFolder {
		return library.TypeSeason
	}

	switch parentType {
	case library.TypeSeries:
		// Non-season directories under a show are treated as seasons
		// (e.g. "Extras"), so episodes below still resolve.
		return library.TypeSeason
	case library.TypeSeason, library.TypeMovie, library.TypeMusicAlbum:
		return library.TypeFolder
	}

	return classifyByContents(path)
}

func classifyByContents(path string) library.ItemType {
	entries, err := os.ReadDir(path)
	if err != nil {
		return library.TypeFolder
	}

	var seasons, videos, audio int
	for _, entry := range entries {
		if IsIgnoredName(entry.Name()) {
			continue
		}
		if entry.IsDir() {
			if IsSeasonDir(entry.Name()) {
				seasons++
			}
			continue
		}
		switch mediatypes.FileTypeOf(entry.Name()) {
		case mediatypes.FileTypeVideo:
			videos++
		case mediatypes.FileTypeAudio:
			audio++
		}
	}

	switch {
	case seasons > 0:
		return library.TypeSeries
	case videos > 0:
		return library.TypeMovie
	case audio > 0:
		return library.TypeMusicAlbum
	}
	return library.TypeFolder
}

func (r *Resolver) classifyFile(name string, parent *library.Item) library.ItemType {
	if parent == nil {
		return ""
	}

	switch mediatypes.FileTypeOf(name) {
	case mediatypes.FileTypeVideo:
		switch parent.Type {
		case library.TypeSeason, library.TypeSeries:
			return library.TypeEpisode
		}
		return library.TypeVideo
	case mediatypes.FileTypeAudio:
		return library.TypeAudio
	case mediatypes.FileTypeImage:
		if IsArtwork(name) {
			return ""
		}
		return library.TypePhoto
	}
	return ""
}
