// Package appfs exposes static assets (email templates, SQL migrations)
// embedded into the binary.
package appfs

import "embed"

//go:embed all:assets migrations
var FS embed.FS
