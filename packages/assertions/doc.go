// Package assertions scores an HTTP response against an endpoint's
// expectations.
//
// Checks run in a fixed order and each produces one or more Results:
//   - Response status against expect.status (default 200)
//   - Headers: case-insensitive lookup, passing when the value contains the expected text
//   - Body expressions: placeholders are resolved with response bound to the body,
//     then the expression is evaluated in the script sandbox and must yield true
//   - JSON Schema validation of the body, one failed Result per violation
//   - Timing bounds against the request's timing breakdown
package assertions
