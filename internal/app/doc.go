// Package app wires the loader, the engines and the observers into the
// gridmapper run lifecycle, decoupled from any specific entrypoint like a
// CLI.
package app
