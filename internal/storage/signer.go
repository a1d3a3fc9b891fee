package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrBadSignature means the signature does not match the key and expiry.
	ErrBadSignature = errors.New("invalid download signature")

	// ErrLinkExpired means the signed link is past its expiry.
	ErrLinkExpired = errors.New("download link expired")
)

// URLSigner mints and verifies time-boxed download links for stored
// originals, so the web layer can hand out file access without exposing
// raw paths.
type URLSigner struct {
	secret []byte
	ttl    time.Duration

	now func() time.Time // test hook
}

// NewURLSigner creates a signer. Links expire ttl after minting.
func NewURLSigner(secret string, ttl time.Duration) *URLSigner {
	return &URLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns the relative download URL for key, carrying expiry and
// signature as query parameters.
func (s *URLSigner) Sign(key string) string {
	expires := s.now().Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.signature(key, expires))
	return fmt.Sprintf("/files/%s?%s", key, q.Encode())
}

// Verify checks the expiry and signature minted by Sign.
func (s *URLSigner) Verify(key, expiresStr, signature string) error {
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(signature), []byte(s.signature(key, expires))) {
		return ErrBadSignature
	}
	if s.now().Unix() > expires {
		return ErrLinkExpired
	}
	return nil
}

func (s *URLSigner) signature(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
