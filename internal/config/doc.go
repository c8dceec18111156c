// Package config defines the settings of a factorio-up run and loads
// optional defaults for them from a YAML file.
//
// Command-line flags override whatever the file provides.
package config
