// Package app wires the application together: configuration, logging, the
// topology loader, the prediction graph, the execution engine, and the HTTP
// API server lifecycle.
package app
