// Package manifests holds the built-in module descriptor files that
// ship with the binary.
package manifests

import "embed"

//go:embed *.yaml
var FS embed.FS
