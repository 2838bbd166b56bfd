package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// WebhookTolerance bounds the clock skew accepted for webhook timestamps.
const WebhookTolerance = 5 * time.Minute

// Webhook verification failures.
var (
	ErrWebhookMissingHeaders = errors.New("missing svix headers")
	ErrWebhookBadTimestamp   = errors.New("invalid webhook timestamp")
	ErrWebhookBadSignature   = errors.New("invalid webhook signature")
	ErrWebhookBadSecret      = errors.New("invalid webhook secret")
)

// WebhookHeaders are the svix-* headers sent with a webhook delivery.
type WebhookHeaders struct {
	ID        string
	Timestamp string
	Signature string
}

// WebhookVerifier checks Svix-style HMAC-SHA256 webhook signatures.
type WebhookVerifier struct {
	key []byte
	now func() time.Time
}

// NewWebhookVerifier decodes a "whsec_"-prefixed base64 secret.
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	encoded := strings.TrimPrefix(strings.TrimSpace(secret), "whsec_")
	if encoded == "" {
		return nil, ErrWebhookBadSecret
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrWebhookBadSecret
	}
	return &WebhookVerifier{key: key, now: time.Now}, nil
}

// Sign returns the v1 signature for a delivery. Used by tests and local tooling.
func (v *WebhookVerifier) Sign(id string, ts time.Time, body []byte) string {
	return "v1," + base64.StdEncoding.EncodeToString(v.mac(id, strconv.FormatInt(ts.Unix(), 10), body))
}

// Verify checks h against body. Any one matching v1 signature in the
// space-separated list is accepted.
func (v *WebhookVerifier) Verify(h WebhookHeaders, body []byte) error {
	if h.ID == "" || h.Timestamp == "" || h.Signature == "" {
		return ErrWebhookMissingHeaders
	}
	sec, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return ErrWebhookBadTimestamp
	}
	skew := v.now().Sub(time.Unix(sec, 0))
	if skew > WebhookTolerance || skew < -WebhookTolerance {
		return ErrWebhookBadTimestamp
	}

	expected := v.mac(h.ID, h.Timestamp, body)
	for _, part := range strings.Fields(h.Signature) {
		version, sig, ok := strings.Cut(part, ",")
		if !ok || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return ErrWebhookBadSignature
}

func (v *WebhookVerifier) mac(id, ts string, body []byte) []byte {
	m := hmac.New(sha256.New, v.key)
	m.Write([]byte(id))
	m.Write([]byte("."))
	m.Write([]byte(ts))
	m.Write([]byte("."))
	m.Write(body)
	return m.Sum(nil)
}
