// Package core contains the canonical channel domain contracts, entities,
// and lifecycle orchestration. Provider adapters and transports depend on
// this package; core never depends on provider-specific code.
package core
