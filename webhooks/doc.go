// Package webhooks owns the security boundary for provider callbacks:
// route detection, signature verification, and the Meta subscription
// handshake. Verification failures surface stable reason strings; anything
// richer stays in internal logs.
package webhooks
