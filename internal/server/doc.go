// Package server hosts the Fiber view surface over the blog client core.
// Handlers render the list, detail and edit screens as JSON, the middleware
// chain assigns request IDs, logs every request and turns panics into a
// generic error body, and the routes subpackage mounts the /-/ diagnostics.
// Keep exports narrow and accept explicit dependencies.
package server
