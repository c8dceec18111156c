// Package launcher hands the process over to the user's command.
//
// The command replaces the current process image, so nothing that must run
// after installation may be scheduled after Launch.
package launcher
