// Package transport wraps the shared http.Client used to talk to the blog REST
// API. It encodes request bodies as JSON, decodes responses, maps 204 to an
// empty result and normalises every failure into *Error so higher layers can
// classify it (network, client, server) without inspecting net/http types.
package transport
