// Package hclconfig loads a mapping problem from HCL files: one
// architecture, one task graph, and optional placement and routing blocks
// that tune the engines.
//
// Blocks may be spread over any number of files below the given paths.
// Every file is parsed before anything is built, so a resource may be
// linked from a file that sorts before the one declaring it.
package hclconfig
