// Package notifications delivers run events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// The supervisor announces run start, the DONE or WARNING summary, and
// fatal errors; everything depends only on the Service interface.
package notifications
