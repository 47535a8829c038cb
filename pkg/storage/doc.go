// Package storage implements core.Store on top of GORM, supporting both
// the SQLite driver (default/dev, in-memory for tests) and the
// PostgreSQL driver (production) against the same schema and queries.
package storage
