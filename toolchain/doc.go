// Package toolchain resolves language identifiers to toolchain descriptors.
//
// A toolchain descriptor carries the default compile and run command
// templates, working directory, and execution timeout for one target
// language. The registry is the authoritative source of command templates
// during descriptor resolution.
package toolchain
