// Package logging provides a simple leveled logging interface for the
// media library server.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true). Setting LOG_FILE additionally writes every line to a
// size-rotated file managed by lumberjack; LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS
// and LOG_MAX_AGE_DAYS tune the rotation.
package logging
