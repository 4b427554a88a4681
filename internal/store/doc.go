// Package store opens SQL connections for the SQL query backend.
//
// SQLite connections go through a dedicated driver registration that
// installs, on every connection:
//   - a REGEXP function with the same semantics as the row matcher
//   - case-sensitive LIKE
//
// PostgreSQL connections use lib/pq, which provides both operators
// natively. Connections are wrapped in sqlx for placeholder rebinding and
// row scanning.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: single writer, and in-memory databases survive
package store
