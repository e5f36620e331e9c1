// Package database provides the SQLite catalog store for the library
// server.
//
// It persists:
//   - The item tree (aggregate root, collection folders and their content)
//   - Physical locations of collection folders
//   - External provider ids and per-provider refresh records
//   - Small key/value metadata such as the last full scan time
//
// The database uses WAL mode for improved concurrent read performance,
// enforces foreign keys so deleting an item removes its whole subtree, and
// includes automatic schema initialization and column migrations.
package database
