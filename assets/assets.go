// Package assets embeds the static dashboard page.
package assets

import _ "embed"

// Index is the unminified dashboard page.
//
//go:embed index.html
var Index []byte
