// Package api serves format conversion and document storage over HTTP.
//
// # Routes
//
//	GET    /healthz
//	GET    /v1/formats
//	POST   /v1/convert?from=json&to=yaml&pretty=true
//	PUT    /v1/documents/{key}?format=json
//	GET    /v1/documents/{key}?format=yaml&pretty=true
//	DELETE /v1/documents/{key}
//
// Keys may contain slashes. Every payload received from a client is
// deserialized in safe mode: a document naming a type outside the
// allow-list is rejected with 422 before anything is stored or converted.
//
// Errors are JSON objects carrying the structured error code:
//
//	{"error":{"code":"DISALLOWED_CLASS","message":"..."},"request_id":"..."}
package api
