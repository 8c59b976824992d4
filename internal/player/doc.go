// Package player defines the audio playback capability the alarm state
// machine drives, plus helpers shared by the backends.
//
// Backends live in subpackages: device decodes mp3 in-process and writes to
// the sound card, command delegates to an OS player executable.
package player
