package expiry

import "strings"

// ResolveRecipients returns the addresses to notify, in account order.
// Accounts without an email are skipped. An empty result means nothing to send.
func ResolveRecipients(accounts []Account, mode SelectionMode) []string {
	var out []string
	for _, a := range accounts {
		email := strings.TrimSpace(a.Email)
		if email == "" {
			continue
		}
		out = append(out, email)
		if mode == SinglePrimary {
			break
		}
	}
	return out
}
