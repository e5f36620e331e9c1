// Package config loads the server policy configuration from a TOML file and
// keeps it current while the server runs.
//
// Bootstrap settings such as directories and the HTTP port come from the
// environment (see package startup). Everything an operator may want to
// change without a restart lives here: the watcher debounce window,
// internet provider policy, provider credentials and library definitions.
//
// Example:
//
//	file_watcher_delay = 8
//	enable_internet_providers = true
//	internet_provider_exclude_types = ["Photo"]
//
//	[tmdb]
//	api_key = "..."
//
//	[[libraries]]
//	name = "TV"
//	locations = ["/media/tv", "/mnt/nas/tv"]
//
// A Manager reloads the file when it changes and notifies subscribers with
// a payload-less signal.
package config
