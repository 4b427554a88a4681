// Package arraydb is the in-memory backend.
//
// Storage keeps tables of rows keyed by identity in insertion order and
// tracks the last inserted identity per table. Sequence is the lazily
// evaluated row pipeline (filter, order, limit, project, aggregate) that
// Engine builds for each query plan.
//
// Semantics match the SQL backend: strict equality, null as the lowest
// value, stable multi-key ordering and SQL aggregate null handling.
package arraydb
