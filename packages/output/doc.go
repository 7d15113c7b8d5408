// Package output renders job results.
//
// Supported output formats:
//   - Console: colored tree of collections, scenarios and endpoints
//   - JSON: machine-readable job document
//   - JUnit: JUnit XML, one suite per scenario, for CI integration
//
// Every formatter implements Formatter. JSON and JUnit accumulate jobs and
// implement Flushable to write them out.
package output
