// Package alarm implements the alarm state machine: play once, loop for a
// bounded window, stop now or after a delay, and volume control.
//
// A single mutex serializes every operation and timer callback. At most one
// timer (loop auto-stop or delayed stop) is armed at a time, and callbacks
// compare the generation they were armed for before touching state.
package alarm
