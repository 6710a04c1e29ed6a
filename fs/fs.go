// Package appfs exposes the application's embedded static assets: database
// migrations, email templates and wordlists.
package appfs

import "embed"

//go:embed assets migrations templates
var FS embed.FS
