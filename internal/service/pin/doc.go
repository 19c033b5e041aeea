// Package pin implements the scoped package hold release.
//
// Acquire releases the APT hold on a set of packages and returns a Guard.
// The Guard remembers every name it is responsible for and puts the hold
// back exactly once when Release runs, whatever happened in between.
// Callers release it with defer right after a successful Acquire.
//
// A failed re-hold leaves driver packages free to float on the next
// unrelated upgrade, so Release logs the affected packages and hands the
// failure to an abort handler that, by default, panics.
package pin
