// Package capture extracts values from JSON responses for use in dependent endpoints.
//
// Paths are segments separated by "." or "/"; a leading "response" segment is
// ignored. Besides literal keys and numeric indices, segments may be keywords
// (case-insensitive):
//   - ANY, RANDOM: one random element of the current array or object
//   - ANY_N: N distinct random elements
//   - ALL: maps the following segment across every element
//   - length, keys, values: structural operations
//
// A literal key always wins over a keyword of the same name. Missing keys do
// not fail: Extract returns NotFound and logs a warning, so callers can carry
// on with an undefined value.
package capture
