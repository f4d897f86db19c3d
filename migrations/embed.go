// Package migrations embeds the SQL schema of the connect-attempt history.
//
// The files are compiled into the binary and applied with
// database.DB.Migrate(ctx, migrations.FS).
package migrations

import "embed"

// FS holds the migration files at its root.
//
//go:embed *.sql
var FS embed.FS
