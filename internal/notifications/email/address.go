package email

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RedactEmail masks an address for logs: "john@gmail.com" becomes
// "j***@gmail.com". Input without an "@" is masked entirely.
func RedactEmail(addr string) string {
	if addr == "" {
		return ""
	}
	local, domain, ok := strings.Cut(addr, "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}

// validAddress reports whether addr is a deliverable RFC 5322 address.
func validAddress(addr string) bool {
	return validate.Var(addr, "required,email") == nil
}
