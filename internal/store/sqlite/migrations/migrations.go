// Package migrations embeds the goose SQL migrations for the local
// on-device database (user records, session slot, analysis history).
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
