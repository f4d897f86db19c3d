// Package database opens the SQLite file that backs the connect-attempt
// history and applies its schema.
//
// Open configures the driver through the DSN (busy timeout, foreign keys and,
// when enabled, WAL journaling) and keeps a single pooled connection so
// writers never contend for the file lock.
//
// Schema changes live in an fs.FS handed to Migrate, usually migrations.FS:
//
//	db, err := database.Open(ctx, database.Config{Path: path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx, migrations.FS)
//
// File names take the form YYYYMMDD_HHMMSS_name.up.sql with an optional
// matching .down.sql. Each migration runs in its own transaction.
package database
