// Package blog is the application layer over the query client: query keys for
// posts, comments and users, the queries the views read, and the mutations
// with their cache reconciliation.
package blog
