// Package ir provides the value and row types shared by every scopeq package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is a closed tagged variant: Null, Bool, Int, Float, Text, Seq
//   - No implicit coercion: Equal is strict (kind and value)
//   - Compare is a total order so that an ordered comparison and its
//     inverse always disagree, which keeps negated scopes exact
//   - A Row never reports a missing field; absent fields read as Null
package ir
