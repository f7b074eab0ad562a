// Package notifications delivers burstline events to ntfy.
//
// The default implementation publishes to the topic URL configured under
// [notifications] and degrades to a no-op when no topic is set. Job failure
// and session mutation events can be switched off individually.
package notifications
