// Package sqldb is the SQL backend.
//
// Engine compiles each query plan with querysql and runs it through a
// store connection. Result values decode to the declared field kinds, so
// rows read back from SQLite or Postgres compare equal to rows produced by
// the in-memory backend.
//
// Integer identities are generated by the database. String identities
// are UUIDv7 tokens generated on insert.
package sqldb
