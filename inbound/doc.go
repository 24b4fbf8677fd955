// Package inbound turns verified webhook deliveries into persisted chat
// messages and outbox events.
//
// The pipeline resolves the route, enforces signature policy, deduplicates
// provider deliveries by their source id, and writes message plus outbox
// rows in one transaction.
package inbound
