// Package schedule builds activity networks and computes CPM schedules and crash steps.
//
// The package is synchronous and holds no locks. A Run owns its graph exclusively;
// callers sharing a Run across goroutines must serialize every call on it.
package schedule
