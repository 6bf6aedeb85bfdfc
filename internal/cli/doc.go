// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. Flags are
// layered over the QUESTGRID_* environment settings.
package cli
