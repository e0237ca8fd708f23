// Package app wires the grid loaders, the resolver and the conflict engine
// into one run lifecycle, decoupled from any specific entrypoint like a CLI
// or server.
package app
