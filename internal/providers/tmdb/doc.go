// Package tmdb is a small client for The Movie Database API and the
// provider that uses it to identify movies and series.
//
// The provider searches by the item's name and year when no TMDB id is
// known yet, stores the id, then imports the overview and year from the
// details endpoint. For series it also records the TVDB and IMDb ids, which
// the fanart provider needs.
package tmdb
