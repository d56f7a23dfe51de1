/**
 * @description
 * L2 request signing for the Polymarket CLOB API.
 * Computes POLY_* headers from the user-scoped API credentials:
 *
 *   message   = timestamp + METHOD + path?query + body
 *   signature = base64url(HMAC-SHA256(base64url-decode(secret), message))
 *
 * The secret decode is tolerant: URL-safe characters are normalized to the
 * standard alphabet, stray characters are stripped, and padding is kept.
 * The output signature is URL-safe with padding preserved, which is what the
 * CLOB expects.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256
 * - encoding/base64
 */

package clob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Credentials holds the L2 API key material for signed CLOB requests
type Credentials struct {
	Address    string
	APIKey     string
	Secret     string
	Passphrase string
}

// Configured reports whether all required fields are present
func (c *Credentials) Configured() bool {
	return c != nil && c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

// Signer produces POLY_* auth headers for outgoing CLOB requests
type Signer struct {
	creds Credentials
	now   func() time.Time
}

// NewSigner creates a signer for the given credentials
func NewSigner(creds Credentials) *Signer {
	return &Signer{creds: creds, now: time.Now}
}

// SignRequest sets the POLY_* headers on req, signing over the method, the
// path including query string, and the body.
func (s *Signer) SignRequest(req *http.Request, body []byte) error {
	timestamp := s.now().Unix()

	path := req.URL.Path
	if path == "" {
		path = "/"
	}
	if req.URL.RawQuery != "" {
		path = fmt.Sprintf("%s?%s", path, req.URL.RawQuery)
	}

	sig, err := s.Sign(timestamp, req.Method, path, body)
	if err != nil {
		return err
	}

	req.Header.Set("POLY_ADDRESS", s.creds.Address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_API_KEY", s.creds.APIKey)
	req.Header.Set("POLY_PASSPHRASE", s.creds.Passphrase)
	return nil
}

// Sign computes the base64url HMAC signature over timestamp+method+path+body
func (s *Signer) Sign(timestamp int64, method, requestPath string, body []byte) (string, error) {
	key, err := decodeSecret(s.creds.Secret)
	if err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d%s%s", timestamp, strings.ToUpper(method), requestPath)
	if len(body) > 0 {
		payload += string(body)
	}

	mac := hmac.New(sha256.New, key)
	if _, err := mac.Write([]byte(payload)); err != nil {
		return "", fmt.Errorf("failed to compute signature: %w", err)
	}

	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	// URL-safe alphabet with padding preserved
	sig = strings.ReplaceAll(sig, "+", "-")
	sig = strings.ReplaceAll(sig, "/", "_")
	return sig, nil
}

// decodeSecret decodes a base64url secret tolerantly: the URL-safe alphabet
// is mapped back to the standard one, anything outside the alphabet is
// dropped, and padding is kept.
func decodeSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("clob api secret missing")
	}

	normalized := strings.TrimSpace(secret)
	normalized = strings.ReplaceAll(normalized, "-", "+")
	normalized = strings.ReplaceAll(normalized, "_", "/")

	var sb strings.Builder
	for _, r := range normalized {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/', r == '=':
			sb.WriteRune(r)
		}
	}
	normalized = sb.String()

	decoded, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		// Some deployments inject the raw secret; sign with it as-is.
		return []byte(secret), nil
	}
	return decoded, nil
}
