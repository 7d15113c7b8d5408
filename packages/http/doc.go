// Package http sends endpoint requests to configured systems.
//
// A System bundles a base URL, default headers and credentials. The Client
// resolves relative endpoint URLs against the system, attaches Basic or
// OAuth2 authorization, and records a timing breakdown of every call.
package http
