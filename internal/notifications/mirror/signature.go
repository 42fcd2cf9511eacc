package mirror

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// SignatureHeader carries "t=<unix>,v1=<hex>" where v1 is the HMAC-SHA256 of
// "<unix>.<body>" under the shared secret.
const SignatureHeader = "X-PolicyPortal-Signature"

// Sign returns the signature header value for body.
func Sign(body []byte, secret string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	return "t=" + ts + ",v1=" + computeHMAC(ts, body, secret)
}

func computeHMAC(ts string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
