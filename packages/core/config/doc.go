// Package config loads vibranium configuration from JSON or YAML files.
//
// Files are searched in the working directory in ConfigFilenames order.
// Values missing from the file keep the defaults of DefaultConfig, and
// Merge overlays command line settings on top.
package config
