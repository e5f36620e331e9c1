// Package handlers provides the HTTP API of the library server.
//
// It includes handlers for:
//   - Health, liveness and readiness endpoints
//   - Triggering a full library rescan
//   - Refreshing one item's metadata
//   - Listing running provider refreshes and watched paths
//   - Reloading the server configuration
package handlers
