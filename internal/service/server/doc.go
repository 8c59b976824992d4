// Package server wires the settings, the audio backend, the alarm state
// machine and the HTTP router into the alarm-server process.
package server
