// Package scan submits transcoded files to the re-index service and polls
// the resulting scan until it reaches a terminal state.
package scan
