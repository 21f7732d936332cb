// Package config holds the format-agnostic topology model produced by a
// Loader and consumed by the graph builder. Keeping the model independent of
// HCL lets tests construct topologies directly and leaves room for other
// document formats.
package config
