// Package config resolves the tool's runtime settings from environment
// variables and CLI flags with precedence: CLI flags > Environment variables >
// Defaults. The path of the printed document is fixed and is not part of the
// overridable settings.
package config
