// Package scope implements the predicate algebra: Condition leaves, Scope
// trees joined by AND/OR junctions, and the Matcher that evaluates a tree
// against an in-memory row.
//
// Scopes own their components exclusively. Every constructor and combinator
// clones the nodes it is handed, so negating or extending one tree never
// changes another.
//
// Negation is structural and eager (De Morgan): Negate flips the junction
// and negates every descendant in place. For every row r and scope s,
//
//	eval(negate(s), r) == !eval(s, r)
//
// holds as long as s has at least one active component. An empty scope means
// "no restriction" and stays empty when negated.
package scope
