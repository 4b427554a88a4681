// Package parity checks that the query backends agree.
//
// A scenario is a YAML document holding CUE model source, a fixture and a
// list of query steps:
//
//	name: null_ordering
//	description: null sorts below every value
//	models: |
//	  model: invoice: fields: {
//	    name: {type: "string", mandatory: true}
//	    amount: {type: "float"}
//	  }
//	fixture:
//	  tables:
//	    - model: invoice
//	      rows: [{name: a, amount: 1.5}, {name: b}]
//	steps:
//	  - name: ascending
//	    model: invoice
//	    order: [{field: amount}]
//	    select: [name]
//	    expect:
//	      rows: [{name: b}, {name: a}]
//
// Run executes every step on each backend from the same seeded state and
// reports any outcome that differs. RunWithGolden additionally pins the
// agreed trace in a golden file.
package parity
