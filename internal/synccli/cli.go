package synccli

import "io"

// ShowHelp prints usage information for the sync tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Rollcall Attendance Sync
========================

Runs one sync pass against the log API and prints guild attendance.
Store, cache and API settings come from the usual ROLLCALL_* environment
and the optional ROLLCALL_CONFIG file.

Usage:
  go run ./cmd/attendance-sync [options]

Options:
  -tags string
        Comma separated guild tag ids to sync (default: sync_tag_ids)
  -zone int
        Only sync reports of this zone (default 0, all zones)
  -since string
        Skip reports before this date (2006-01-02 or RFC 3339)
  -fresh
        Bypass the response cache
  -ranks string
        Print these ranks instead of the counting ranks
  -format string
        Output format: table, json or export (default "table")
  -no-sync
        Print what the store already holds without syncing
  -help
        Show this help message

Examples:
  # Sync the configured tags and print a table
  go run ./cmd/attendance-sync

  # Sync two tags since June and print the export shape
  go run ./cmd/attendance-sync -tags 10,30 -since 2025-06-01 -format export
`)
}
