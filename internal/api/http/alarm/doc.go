// Package alarm exposes the alarm state machine over HTTP with gin.
//
// It maps each endpoint to one state machine operation, renders the status
// as JSON, guards the API with optional basic auth and serves the control page.
package alarm
