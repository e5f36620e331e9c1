// Package mediatypes provides shared file-type definitions used when
// classifying library content.
//
// This package exists as a dependency-free foundation that can be imported by
// the resolver, the providers and the watcher without creating import cycles.
//
// # File Types
//
//	mediatypes.FileTypeFolder  // Directories
//	mediatypes.FileTypeImage   // jpg, png, webp, ...
//	mediatypes.FileTypeVideo   // mp4, mkv, avi, ...
//	mediatypes.FileTypeAudio   // mp3, flac, m4a, ...
//	mediatypes.FileTypeSidecar // nfo and subtitle files
//	mediatypes.FileTypeOther   // everything else
//
// # Extension Detection
//
//	fileType := mediatypes.FileTypeOf("/media/Show/Season 1/ep01.mkv")
//
// # MIME Types
//
// GetMimeType maps an extension to a MIME type; ExtensionForMimeType goes the
// other way for images downloaded from remote providers.
package mediatypes
