// Package query implements the backend-independent query state machine.
//
// A Query snapshots a model and accumulates its own scope, order and
// limit. Exactly one mode is committed:
//
//	unset -> SELECT | INSERT | UPDATE | DELETE
//
// Select-family calls (Select, Exists, Count, Aggregate, Field) enter
// SELECT through the init_select hook. Insert, Update and Delete commit
// their mode only from unset. Terminal calls consume the query once and
// default to SELECT.
//
// Backends implement Engine. The query calls the engine's Init hooks as
// the plan is built and one Do hook per terminal call. Backend failures
// surface as QUERY_EXECUTION_FAILED carrying the cause and a Debug
// snapshot.
package query
