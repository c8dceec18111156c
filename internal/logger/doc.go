// Package logger wraps zap with a global sugared logger and context helpers.
//
// The logger writes console-formatted lines to stderr so that stdout stays
// free for output relayed from the server binary. Services name their logger
// with WithName and pass it along inside the context.
package logger
