// Package grouping splits a row stream into groups.
//
// One Policy is selected when the Accumulator is built: BySize when a
// positive size is configured, otherwise ByFieldChange when a field is named,
// otherwise ByElapsedTime when a positive window is set, otherwise Ungrouped.
// For every row the caller asks Offer for a Decision, flushes before or after
// Append as told, and flushes once more at end of input if rows remain.
package grouping
