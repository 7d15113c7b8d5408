// Package builtin provides the reserved function namespace of the template language.
//
// Zero-argument functions are exposed as generator variables, so "{timestamp}"
// is re-evaluated every time it is substituted:
//   - timestamp, timestampMs: Unix time in seconds / milliseconds
//   - now, isoDate: current time and date (RFC 3339 / 2006-01-02, UTC)
//   - time: current time of day (15:04:05, UTC)
//   - uuid: random UUID v4
//
// Functions with arguments are invoked with call syntax, "{random(1, 10)}":
//   - date(layout), random(min, max), randomString(length)
//   - base64(value), urlEncode(value), sha256(value)
package builtin
