// Package application provides application initialization and dependency wiring.
// It encapsulates the creation of the renderer, composer and notifier, and runs
// one notice end to end, keeping the main package focused on CLI parsing,
// user-facing messages and exit codes.
package application
