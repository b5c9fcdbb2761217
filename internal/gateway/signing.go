package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// SignatureHeader carries the request signature.
const SignatureHeader = "HMacAuthorizationHeader"

// Signature is a computed request signature and the values it covered.
type Signature struct {
	AppID     string
	Hash      string
	Nonce     string
	Timestamp int64
}

// Header renders the signature in the gateway's "amx" scheme.
func (s Signature) Header() string {
	return fmt.Sprintf("amx %s:%s:%s:%d", s.AppID, s.Hash, s.Nonce, s.Timestamp)
}

// Sign computes the HMAC-SHA256 signature for a request. key is the
// base64-encoded shared secret; bodyHash is empty for bodiless requests.
func Sign(appID, key, method, requestURL string, ts int64, nonce, bodyHash string) (Signature, error) {
	secret, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: hmac key is not valid base64: %v", ErrAuth, err)
	}

	raw := appID + method + strings.ToLower(rawURLEncode(requestURL)) + strconv.FormatInt(ts, 10) + nonce + bodyHash

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(raw))

	return Signature{
		AppID:     appID,
		Hash:      base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		Nonce:     nonce,
		Timestamp: ts,
	}, nil
}

// rawURLEncode percent-encodes every byte outside the RFC 3986 unreserved
// set, using uppercase hex.
func rawURLEncode(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}

// newNonce returns 32 lowercase hex characters.
func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("gateway: generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
