// Package template implements command template rendering.
//
// A command template is a shell command string containing placeholders of
// the form {name}, where name consists of letters, digits, and underscores.
// Build replaces each placeholder with its value from a variable map.
// Placeholders without a matching variable are left untouched so that a
// partial variable set still produces a best-effort command.
package template
