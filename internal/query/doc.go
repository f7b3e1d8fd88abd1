// Package query coordinates fetches against a cache.Store.
//
// Client dedupes concurrent fetches per key through singleflight, assigns every
// issued fetch a per-key sequence number so that only the latest one may write
// to the store, retries transient failures with capped exponential backoff and
// exposes observers that follow one key. Mutation runs writes with explicit
// status, optional optimistic updates and a reconciliation continuation that
// patches or invalidates cached queries.
package query
