// Package calendar exports alert rules as an iCalendar feed so they can be
// shown next to regular appointments. Repeating rules become recurring
// events in floating local time; one-time rules become single UTC events.
package calendar
