// Package api exposes the gateway over HTTP: POST /store persists an upload,
// GET /file/{fileId} redirects a content key to its stored object and
// GET /diagnostics/blob checks the backend.
package api
