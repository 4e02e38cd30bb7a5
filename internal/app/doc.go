// Package app wires the catalog services together from a startup.Config.
// Both binaries build the same graph through [Build]; only the server
// starts the background loops.
package app
