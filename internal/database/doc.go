// Package database provides PostgreSQL connection pool management for the
// durable handoff queue backend.
package database
