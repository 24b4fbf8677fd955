// Package providers contains the built-in channel transport adapters:
// Telegram bots, the WhatsApp Cloud API, the Evolution QR gateway, and
// webchat. Each adapter lives in its own subpackage and satisfies
// core.ChannelAdapter.
package providers
