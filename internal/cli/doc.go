// Package cli parses command-line arguments into an application config.
package cli
