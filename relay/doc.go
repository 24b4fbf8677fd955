// Package relay moves persisted outbox events to the message broker. The
// publisher speaks AMQP against a topic exchange; the runner drains pending
// rows on an interval using the core outbox dispatcher.
package relay
