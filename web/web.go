// Package web holds the embedded HTML templates and static assets.
package web

import "embed"

// Files contains templates/*.html and static/.
//
//go:embed templates static
var Files embed.FS
