// Package appfs embeds the static files the binaries need at run time:
// database migrations, email templates, locale messages & the common passwords list.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* locales/*.yaml common-passwords.txt.gz
var FS embed.FS
