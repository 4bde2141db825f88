// Package migration applies versioned SQL files to a database and records each applied
// version in the schema_migrations table.
//
// Migration files are named {version}_{description}.sql, where version is numeric. Files
// are applied in ascending version order, each inside its own transaction. A file may
// carry a "-- Description: ..." comment that takes precedence over the filename.
package migration
