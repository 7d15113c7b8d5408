// Package scenario defines the declarative test model: scenarios grouping
// endpoints, the dependencies between endpoints, and the expectations a
// response is scored against.
package scenario
