// Package fanart downloads posters and backdrops from fanart.tv.
//
// The provider needs an id recorded by the TMDB provider (TMDB for movies,
// TVDB for series), so it is ordered after it. Images are saved beside the
// item through the provider manager, which keeps the file watcher from
// reporting the writes back as external changes.
package fanart
