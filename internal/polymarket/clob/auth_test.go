package clob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"
	"time"
)

func testSigner(secret string) *Signer {
	s := NewSigner(Credentials{
		Address:    "0xabc",
		APIKey:     "key-1",
		Secret:     secret,
		Passphrase: "pass-1",
	})
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func expectedSig(t *testing.T, key []byte, payload string) string {
	t.Helper()
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	sig = strings.ReplaceAll(sig, "+", "-")
	return strings.ReplaceAll(sig, "/", "_")
}

func TestSignRequestHeaders(t *testing.T) {
	secret := base64.URLEncoding.EncodeToString([]byte("super-secret-key"))
	signer := testSigner(secret)

	req, _ := http.NewRequest(http.MethodGet, "https://clob.example.com/markets/0xcond?foo=bar", nil)
	if err := signer.SignRequest(req, nil); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}

	if got := req.Header.Get("POLY_ADDRESS"); got != "0xabc" {
		t.Errorf("POLY_ADDRESS = %q", got)
	}
	if got := req.Header.Get("POLY_API_KEY"); got != "key-1" {
		t.Errorf("POLY_API_KEY = %q", got)
	}
	if got := req.Header.Get("POLY_PASSPHRASE"); got != "pass-1" {
		t.Errorf("POLY_PASSPHRASE = %q", got)
	}
	if got := req.Header.Get("POLY_TIMESTAMP"); got != "1700000000" {
		t.Errorf("POLY_TIMESTAMP = %q", got)
	}

	want := expectedSig(t, []byte("super-secret-key"), "1700000000GET/markets/0xcond?foo=bar")
	if got := req.Header.Get("POLY_SIGNATURE"); got != want {
		t.Errorf("POLY_SIGNATURE = %q, want %q", got, want)
	}
}

func TestSignIncludesBody(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("k"))
	signer := testSigner(secret)

	withBody, err := signer.Sign(1700000000, "post", "/orders", []byte(`{"x":1}`))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	withoutBody, err := signer.Sign(1700000000, "post", "/orders", nil)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if withBody == withoutBody {
		t.Fatal("body did not affect the signature")
	}

	// Method is uppercased before signing
	upper, _ := signer.Sign(1700000000, "POST", "/orders", []byte(`{"x":1}`))
	if upper != withBody {
		t.Fatal("method casing affected the signature")
	}
}

func TestSignatureIsURLSafe(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("another-key"))
	signer := testSigner(secret)

	// Scan a range of timestamps so at least one raw signature contains a
	// character that needs translation.
	for ts := int64(0); ts < 200; ts++ {
		sig, err := signer.Sign(ts, "GET", "/markets", nil)
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}
		if strings.ContainsAny(sig, "+/") {
			t.Fatalf("signature %q contains non-url-safe characters", sig)
		}
	}
}

func TestDecodeSecretVariants(t *testing.T) {
	raw := []byte{0xfb, 0xef, 0xff, 0x01, 0x02}
	std := base64.StdEncoding.EncodeToString(raw)
	urlSafe := base64.URLEncoding.EncodeToString(raw)

	for name, secret := range map[string]string{
		"standard":   std,
		"url-safe":   urlSafe,
		"whitespace": "  " + std + "\n",
	} {
		decoded, err := decodeSecret(secret)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", name, err)
		}
		if string(decoded) != string(raw) {
			t.Fatalf("%s: decoded %x, want %x", name, decoded, raw)
		}
	}

	// Undecodable secrets are used as raw key bytes
	decoded, err := decodeSecret("!!not-base64-at-all!!!!!")
	if err != nil {
		t.Fatalf("raw fallback errored: %v", err)
	}
	if string(decoded) != "!!not-base64-at-all!!!!!" {
		t.Fatalf("raw fallback altered the secret: %q", decoded)
	}

	if _, err := decodeSecret(""); err == nil {
		t.Fatal("empty secret must error")
	}
}
