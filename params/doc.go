// Package params resolves the parameters handed to a sub-pipeline on each
// invocation.
//
// Each Declaration is resolved independently and in order:
//
//  1. the declared field's non-blank value in the group's last row
//  2. the non-blank static value
//  3. "" when a field was declared but produced nothing
//  4. the caller's non-blank variable of the same name, when inheritance is on
//  5. ""
//
// Rules 3 and 5 also define the variable as "" in the caller's scope.
package params
