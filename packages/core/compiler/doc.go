// Package compiler turns raw scenario documents into filtered Scenario lists.
//
// Collections, scenarios and endpoints are selected by name, either exactly
// or, in search mode, by regular expression. Every compiled scenario is also
// indexed in a Cache so that dependencies on scenarios outside the current
// selection can be resolved without reading the source again.
package compiler
