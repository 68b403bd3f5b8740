package webhook

import "crypto/subtle"

// SecretHeader is the shared-secret header the chat platform attaches to
// webhook deliveries.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ValidSecret compares the caller-supplied token against the configured
// secret in constant time, so mismatches leak no timing signal. An empty
// supplied token never validates.
func ValidSecret(supplied, expected string) bool {
	if supplied == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) == 1
}
