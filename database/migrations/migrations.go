// Package migrations contains the index database schema migrations.
// Each migration registers itself from init() with migration.Register.
// Importing this package for side effects makes them available to
// `djqs migrate`.
package migrations
