// Package handoff implements the queue that bridges the connection read path
// and the independently scheduled wake consumer.
//
// Every backend is an unbounded FIFO of model.Message values:
//   - Memory: in-process ring buffer (default)
//   - SQLite: local file, survives process restarts
//   - Postgres: shared database table
//
// Enqueue and Dequeue never block on other callers and never return errors;
// durable backends log storage failures and degrade to "not stored" or
// "not found".
package handoff
