// Package recurrence computes the next fire instant of an alert schedule.
//
// All functions are pure: they read only their arguments and compare
// strictly, so an occurrence equal to "after" is never returned.
package recurrence
