// Package mapgen creates the initial save file for a fresh server from
// map-generator and map settings files.
package mapgen
