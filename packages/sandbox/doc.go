// Package sandbox runs user scripts and assertion expressions in an embedded
// JavaScript VM. Scripts get no filesystem, process or network access; the
// only way out of the VM is the callApi function supplied by the caller.
package sandbox
