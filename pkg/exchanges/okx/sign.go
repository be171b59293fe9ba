package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

const loginPath = "/users/self/verify"

// Sign returns Base64(HMAC-SHA256(secret, timestamp+"GET"+"/users/self/verify")).
func Sign(secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "GET" + loginPath))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// LoginTimestamp formats t as decimal unix seconds, as the login op expects.
func LoginTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
