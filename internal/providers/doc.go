// Package providers runs the metadata provider chain for catalog items.
//
// A [Provider] fetches or derives metadata or images for one item. The
// [Manager] holds the chain in ascending [Priority] order and, for each
// provider, applies the skip rules in [Eligible], asks the provider whether
// it has anything to do, and runs it under its own cancellable context.
// A later provider may rely on fields an earlier one filled in; the fanart
// provider, for example, needs the TMDB id.
//
// At most one run exists per (item, provider) pair. Starting a second run
// cancels the first with [ErrSuperseded]. A configuration change cancels
// internet providers that are no longer allowed with [ErrPolicyChanged].
// Only the caller's own cancellation is returned from [Manager.Refresh];
// a provider failure is logged, stamped on the item as a failed refresh and
// reported as an unspecified update so the item is saved.
//
// When a provider's NeedsRefresh check fails, the [NeedsRefreshErrorPolicy]
// from the server configuration decides: fail_closed (the default) skips
// the provider for this refresh, fail_open runs it.
//
// Concrete providers live in the subpackages mediainfo, localimages, tmdb
// and fanart.
package providers
