// Package resolver turns filesystem entries into catalog items.
//
// Classification is purely heuristic and based on names, extensions and the
// immediate contents of a directory:
//
//	Show/                 Series   (contains season folders)
//	Show/Season 1/        Season
//	Show/Season 1/e1.mkv  Episode
//	Movie (2010)/         Movie    (contains video files)
//	Album/                MusicAlbum
//	Album/01.flac         Audio
//	Photos/img.jpg        Photo
//
// Hidden entries, system folders, sidecars such as .nfo or .srt files, and
// folder artwork (poster.jpg, backdrop2.png, ...) do not become items.
package resolver
