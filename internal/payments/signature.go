package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

func hmacSHA256(secret string, parts ...string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, p := range parts {
		mac.Write([]byte(p))
	}
	return mac.Sum(nil)
}

// SignHex returns hex(HMAC-SHA256(secret, parts...)).
func SignHex(secret string, parts ...string) string {
	return hex.EncodeToString(hmacSHA256(secret, parts...))
}

// SignBase64 returns base64(HMAC-SHA256(secret, parts...)).
func SignBase64(secret string, parts ...string) string {
	return base64.StdEncoding.EncodeToString(hmacSHA256(secret, parts...))
}

// signatureEqual uses a constant-time compare.
func signatureEqual(want, got string) bool {
	return got != "" && hmac.Equal([]byte(want), []byte(got))
}
