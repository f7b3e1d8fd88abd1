// Package api exposes typed operations for the blog REST resources (posts,
// comments, users) on top of transport.Client.
package api
