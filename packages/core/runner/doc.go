// Package runner executes compiled scenarios.
//
// A job runs every scenario concurrently. Within a scenario the lifecycle
// hooks run in order (before-scenario, generate, after-globals), then every
// endpoint runs through its own pipeline:
//
//	PENDING -> BEFORE_HOOKS -> DEPENDENCIES -> THROTTLE_WAIT -> IN_FLIGHT -> ASSERTING -> DONE
//
// with FAILED reachable from the hook, dependency and network stages.
// Dependencies are executed recursively before the dependent request and
// their responses feed variables into its scope. All network calls of a job
// share one Throttle.
package runner
