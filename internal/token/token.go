// Package token issues and verifies the one-time security tokens embedded in
// the checkout page. A token is an HMAC-signed nonce with an expiry; each one
// is accepted at most once.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrMalformed = errors.New("malformed token")
	ErrBadMAC    = errors.New("token signature mismatch")
	ErrExpired   = errors.New("token expired")
	ErrReplayed  = errors.New("token already used")
)

// Consumed-nonce filter sizing. A false positive rejects a fresh token (the
// buyer re-requests one); it can never allow a replay.
const (
	filterCapacity = 1_000_000
	filterFPR      = 0.0001
)

// Validator issues and checks one-time checkout tokens. Safe for concurrent
// use.
type Validator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen *bloom.BloomFilter
}

// New creates a Validator signing with secret; issued tokens expire after ttl.
func New(secret []byte, ttl time.Duration) *Validator {
	return &Validator{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
		seen:   bloom.NewWithEstimates(filterCapacity, filterFPR),
	}
}

// Issue returns a fresh token of the form nonce.expiry.signature.
func (v *Validator) Issue() string {
	nonce := uuid.New().String()
	exp := strconv.FormatInt(v.now().Add(v.ttl).Unix(), 10)
	return nonce + "." + exp + "." + v.sign(nonce, exp)
}

// Validate checks the token's shape, signature, and expiry, then consumes its
// nonce. A second call with the same token returns ErrReplayed.
func (v *Validator) Validate(tok string) error {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return ErrMalformed
	}
	nonce, exp, mac := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(mac), []byte(v.sign(nonce, exp))) {
		return ErrBadMAC
	}

	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrMalformed
	}
	if v.now().Unix() > expUnix {
		return ErrExpired
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen.TestString(nonce) {
		return ErrReplayed
	}
	v.seen.AddString(nonce)
	return nil
}

func (v *Validator) sign(nonce, exp string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(nonce))
	mac.Write([]byte{'.'})
	mac.Write([]byte(exp))
	return hex.EncodeToString(mac.Sum(nil))
}
