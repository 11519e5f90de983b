// Package http exposes flows and server-side sessions over a JSON API routed
// with chi, plus server-sent events for session updates and flow reloads.
package http
