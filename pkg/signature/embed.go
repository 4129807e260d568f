package signature

import "embed"

// builtinFS holds the shipped signatures and sets.
//
//go:embed signatures/*.yml sets/*.yml
var builtinFS embed.FS
