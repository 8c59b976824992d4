// Package config defines the alarm server settings and provides helpers to
// load, validate and save them in YAML format.
//
// Config covers the listen address, the alarm sound file, basic auth
// credentials, playback timings, the player backend and logging.
package config
