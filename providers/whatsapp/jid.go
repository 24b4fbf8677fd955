// Package whatsapp holds helpers shared by the Cloud API and QR gateway
// transports.
package whatsapp

import "strings"

// CleanJID strips the WhatsApp server suffix and any leading plus sign so
// both transports address recipients by bare phone number. Group jids keep
// their full form.
func CleanJID(jid string) string {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return ""
	}
	if strings.HasSuffix(jid, "@g.us") {
		return jid
	}
	if at := strings.IndexByte(jid, '@'); at >= 0 {
		jid = jid[:at]
	}
	jid = strings.TrimPrefix(jid, "+")
	if colon := strings.IndexByte(jid, ':'); colon >= 0 {
		jid = jid[:colon]
	}
	return jid
}

// JID renders a bare phone number as the individual chat jid the gateway
// expects. Already-qualified jids pass through.
func JID(number string) string {
	number = CleanJID(number)
	if number == "" {
		return ""
	}
	if strings.Contains(number, "@") {
		return number
	}
	return number + "@s.whatsapp.net"
}
