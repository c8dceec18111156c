// Package archive unpacks compressed tar archives into a directory.
package archive
