// Package queue persists video submissions in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-item recovery, and retry of failed
// submissions. Submission rows capture progress, measured sizes, the uploaded
// video URL, and the recipe draft so stages can coordinate without additional
// state.
//
// The database is transient storage for in-flight work rather than a
// long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
