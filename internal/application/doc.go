// Package application wires the document loader, JSON renderer, output
// snapshot and optional file watcher together, keeping the main package
// focused on CLI parsing and orchestration.
package application
