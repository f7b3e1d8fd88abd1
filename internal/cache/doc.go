// Package cache defines the in-memory store that holds query results keyed by
// structural Keys. The store owns every Entry: callers read snapshots, write
// through atomic updater functions, and subscribe to per-key events. Entries
// that lose their last subscriber are garbage collected after a per-entry idle
// window. Freshness decisions live in Freshness so the query layer can decide
// when to refetch without the store knowing about fetch functions.
package cache
