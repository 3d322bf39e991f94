// Package layout implements the box arithmetic that maps writer blocks
// onto reader selections.
//
// Every array block and every selection is a [Box]: a start offset and a
// count per dimension inside the global shape of a variable, with
// row-major (C order) element layout. A reader selection is assembled by
// intersecting it with each writer block of the step and copying the
// overlap row by row with [CopyOverlap]; the innermost dimension is always
// copied as one contiguous run.
//
// A zero-dimensional box describes a single value.
package layout
