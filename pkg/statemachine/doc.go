// Package statemachine holds the pure predicates and classifiers over a
// Job's state, free-standing over core.Job rather than bolted onto it as
// methods — state classification has no storage dependency and no
// receiver-held state, so it stays a plain function set.
package statemachine
