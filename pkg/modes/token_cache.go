// SPDX-License-Identifier: Apache-2.0
//
// Copyright 2025 Jeremy Hahn
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package modes

import (
	"errors"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/signing"
)

const (
	// DefaultTokenValidity is the default lifetime of a freshly issued
	// session token.
	DefaultTokenValidity = 4 * time.Hour
	// DefaultCacheSize bounds the number of tokens a TokenCache retains.
	DefaultCacheSize = 20
)

var (
	// ErrTokenExpired reports a token whose not-after has passed.
	ErrTokenExpired = errors.New("modes: token expired")
	// ErrTokenReplayed reports a second consumption of an already-used
	// token nonce.
	ErrTokenReplayed = errors.New("modes: token nonce already consumed")
	// ErrCapabilityMismatch reports a token whose capability descriptor
	// does not cover the requested operation.
	ErrCapabilityMismatch = errors.New("modes: token capability does not cover request")
	// ErrCacheFull reports a cache already at its bound. TokenCache.Insert
	// does not return it: a full cache evicts its oldest token instead.
	ErrCacheFull = errors.New("modes: token cache full")
	// ErrFallbackDenied reports that neither a live threshold session nor
	// a covering cached token was available.
	ErrFallbackDenied = errors.New("modes: no online session and no covering cached token")
)

// KeychainAccessLevel orders keychain capability from least to most
// sensitive; a token granting a higher level implicitly covers requests
// for any lower level.
type KeychainAccessLevel int

const (
	KeychainNone KeychainAccessLevel = iota
	KeychainLowSecurity
	KeychainMediumSecurity
	KeychainHighSecurity
)

// PaymentLimits bounds a token's payment authorization. RemainingTodayMinor
// is mutable local state, decremented in place as the token is consumed
// for payments. It is part of the Capabilities value that
// descriptorMessage encodes, so the token signature covers its value at
// issuance; the signature is not checked again after a decrement.
type PaymentLimits struct {
	MaxPerTransactionMinor uint64
	MaxPerDayMinor         uint64
	RemainingTodayMinor    uint64
	Currency               string
}

// Capabilities enumerates what a session token authorizes.
type Capabilities struct {
	DeviceUnlock     bool
	KeychainAccess   KeychainAccessLevel
	PaymentLimits    *PaymentLimits
	CodeSigning      bool
	FileVaultDecrypt bool
}

// Request describes a single operation a caller wants a token to cover.
type Request struct {
	DeviceUnlock     bool
	KeychainAccess   KeychainAccessLevel
	PaymentMinor     uint64
	PaymentCurrency  string
	CodeSigning      bool
	FileVaultDecrypt bool
}

// Covers reports whether c authorizes the operation described by req.
func (c *Capabilities) Covers(req *Request) bool {
	if req.DeviceUnlock && !c.DeviceUnlock {
		return false
	}
	if req.KeychainAccess > c.KeychainAccess {
		return false
	}
	if req.PaymentMinor > 0 {
		if c.PaymentLimits == nil {
			return false
		}
		if req.PaymentCurrency != c.PaymentLimits.Currency {
			return false
		}
		if req.PaymentMinor > c.PaymentLimits.MaxPerTransactionMinor {
			return false
		}
		if req.PaymentMinor > c.PaymentLimits.RemainingTodayMinor {
			return false
		}
	}
	if req.CodeSigning && !c.CodeSigning {
		return false
	}
	if req.FileVaultDecrypt && !c.FileVaultDecrypt {
		return false
	}
	return true
}

// UsageTracker records how many times a session token has been
// consumed and when it was last consumed, kept alongside (not instead
// of) the cache's own nonce-based replay set: the replay set alone
// enforces single-use, while this survives on the token itself for
// telemetry even after the token has been evicted from the cache.
type UsageTracker struct {
	UseCount   uint64
	LastUsedAt time.Time
}

// SessionToken is a pre-signed capability grant usable while offline.
type SessionToken struct {
	Nonce        [16]byte
	IssuedAt     time.Time
	NotAfter     time.Time
	Capabilities Capabilities
	Signature    *signing.Signature
	Usage        UsageTracker
}

// descriptorMessage is the message the issuing signing session signs for
// a token: nonce, not-after, and the CBOR-encoded capability descriptor
// absorbed as labeled elements of a "token"-role transcript, so the
// resulting message can never collide with an arbitrary caller-chosen
// message routed through the generic signing engine under a different
// role. CBOR is used for the capability payload (rather than a fixed
// field layout) since Capabilities carries an optional PaymentLimits.
func descriptorMessage(nonce [16]byte, notAfter time.Time, caps Capabilities) ([]byte, error) {
	capsBytes, err := cbor.Marshal(caps)
	if err != nil {
		return nil, err
	}
	tr := group.NewTranscript("token")
	tr.AppendMessage("nonce", nonce[:])
	var tsBuf [8]byte
	ts := uint64(notAfter.Unix())
	for i := 0; i < 8; i++ {
		tsBuf[i] = byte(ts >> (8 * i))
	}
	tr.AppendMessage("not_after", tsBuf[:])
	tr.AppendMessage("capabilities", capsBytes)
	return tr.SqueezeScalar().Bytes(), nil
}

// IssueSessionTokenMessage returns the message a live threshold signing
// session must sign to issue a new token, and the nonce/expiration the
// caller must carry through to NewSessionToken once the signature is
// available.
func IssueSessionTokenMessage(r io.Reader, caps Capabilities, validity time.Duration) (nonce [16]byte, notAfter time.Time, message []byte, err error) {
	nonce, err = newNonce(r)
	if err != nil {
		return nonce, notAfter, nil, err
	}
	notAfter = time.Now().Add(validity)
	message, err = descriptorMessage(nonce, notAfter, caps)
	return nonce, notAfter, message, err
}

// NewSessionToken assembles a token from an issued signature, verifying
// it against the group public key before returning.
func NewSessionToken(nonce [16]byte, issuedAt, notAfter time.Time, caps Capabilities, groupKey *group.Point, sig *signing.Signature) (*SessionToken, error) {
	message, err := descriptorMessage(nonce, notAfter, caps)
	if err != nil {
		return nil, err
	}
	if !signing.Verify(message, sig, groupKey) {
		return nil, signing.ErrVerificationFailed
	}
	return &SessionToken{
		Nonce:        nonce,
		IssuedAt:     issuedAt,
		NotAfter:     notAfter,
		Capabilities: caps,
		Signature:    sig,
	}, nil
}

// Valid reports whether the token has not yet expired, at instant now.
func (t *SessionToken) Valid(now time.Time) bool {
	return now.Before(t.NotAfter)
}

// TokenCache holds a bounded set of pre-signed tokens plus the replay
// set of consumed nonces. It is a single-writer/multiple-reader resource
// whose serialization is the caller's responsibility, matching the
// concurrency model the signing and DKG engines use.
type TokenCache struct {
	maxSize int
	tokens  []*SessionToken
	used    map[[16]byte]time.Time
}

// NewTokenCache creates an empty cache bounded to maxSize tokens. A
// maxSize of 0 selects DefaultCacheSize.
func NewTokenCache(maxSize int) *TokenCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &TokenCache{
		maxSize: maxSize,
		used:    make(map[[16]byte]time.Time),
	}
}

// Insert adds a freshly issued token to the cache, evicting the
// earliest-inserted token if the cache is at capacity.
func (c *TokenCache) Insert(t *SessionToken) {
	if len(c.tokens) >= c.maxSize {
		c.tokens = c.tokens[1:]
	}
	c.tokens = append(c.tokens, t)
}

// Consume finds the first cached, unexpired, unreplayed token whose
// capabilities cover req, records its nonce as spent, and returns it.
// Consumption is idempotent per nonce: a second Consume naming the same
// token's nonce is rejected with ErrTokenReplayed even if other tokens in
// the cache could also satisfy req. When no token qualifies, the most
// specific applicable rejection reason is returned (mismatch, expiry, or
// replay, in that precedence) so a caller inspecting the cache directly
// gets an attributable error; HybridSigner.Dispatch collapses all of
// these into ErrFallbackDenied once every dispatch path is exhausted.
func (c *TokenCache) Consume(req *Request, now time.Time) (*SessionToken, error) {
	// Pruning runs after the scan so an expired covering token is still
	// seen and reported as ErrTokenExpired before it is dropped.
	defer c.pruneExpired(now)
	reason := ErrCapabilityMismatch
	for _, t := range c.tokens {
		if !t.Capabilities.Covers(req) {
			continue
		}
		if !t.Valid(now) {
			reason = ErrTokenExpired
			continue
		}
		if _, replayed := c.used[t.Nonce]; replayed {
			reason = ErrTokenReplayed
			continue
		}
		c.used[t.Nonce] = t.NotAfter
		t.Usage.UseCount++
		t.Usage.LastUsedAt = now
		if req.PaymentMinor > 0 {
			limits := t.Capabilities.PaymentLimits
			limits.RemainingTodayMinor = saturatingSub(limits.RemainingTodayMinor, req.PaymentMinor)
		}
		return t, nil
	}
	return nil, reason
}

// pruneExpired drops replay-set entries whose owning token has already
// expired, bounding the replay set's growth to the token cache's own
// bound rather than accumulating forever.
func (c *TokenCache) pruneExpired(now time.Time) {
	for nonce, notAfter := range c.used {
		if now.After(notAfter) {
			delete(c.used, nonce)
		}
	}
	live := c.tokens[:0]
	for _, t := range c.tokens {
		if t.Valid(now) {
			live = append(live, t)
		}
	}
	c.tokens = live
}

// saturatingSub mirrors the reference implementation's
// remaining_today.saturating_sub(amount): a payment never drives the
// remaining daily allowance below zero even if called with amount >
// remaining.
func saturatingSub(remaining, amount uint64) uint64 {
	if amount > remaining {
		return 0
	}
	return remaining - amount
}

// HybridSigner dispatches a signing request in the order the spec
// requires: (i) a live threshold session combining local and remote
// shares, (ii) a covering cached token, (iii) fallback-denied. The live
// path is represented here by a caller-supplied closure rather than a
// concrete transport, since transport is an external collaborator.
type HybridSigner struct {
	cache           *TokenCache
	attemptOnline   func() (*signing.Signature, []byte, error)
	degradedAllowed bool
}

// NewHybridSigner constructs a dispatcher over the given cache.
// attemptOnline, if non-nil, is tried first and should return
// (ErrFallbackDenied-equivalent, nil message) when no online session
// exists rather than blocking.
func NewHybridSigner(cache *TokenCache, attemptOnline func() (*signing.Signature, []byte, error)) *HybridSigner {
	return &HybridSigner{cache: cache, attemptOnline: attemptOnline}
}

// AllowDegradedLocalOnly opts into a fourth, explicitly out-of-protocol
// dispatch mode: a single local share may answer after the online and
// cached-token paths both fail. This is a product-policy decision, not a
// protocol one, and is off by default.
func (h *HybridSigner) AllowDegradedLocalOnly(allow bool) {
	h.degradedAllowed = allow
}

// Dispatch runs the hybrid dispatch order for req at instant now.
// degradedFallback, if the degraded path is enabled and reached, is
// invoked as the final attempt; its signature is not cross-checked
// against any cached capability since the degraded path is a policy
// escape hatch, not a capability-bearing token.
func (h *HybridSigner) Dispatch(req *Request, now time.Time, degradedFallback func() (*signing.Signature, error)) (*signing.Signature, *SessionToken, error) {
	if h.attemptOnline != nil {
		if sig, _, err := h.attemptOnline(); err == nil && sig != nil {
			return sig, nil, nil
		}
	}
	if h.cache != nil {
		if token, err := h.cache.Consume(req, now); err == nil {
			return token.Signature, token, nil
		}
	}
	if h.degradedAllowed && degradedFallback != nil {
		sig, err := degradedFallback()
		if err != nil {
			return nil, nil, err
		}
		return sig, nil, nil
	}
	return nil, nil, ErrFallbackDenied
}

// newNonce draws a fresh 16-byte token nonce, matching the teacher's
// preference for uuid-shaped random identifiers over raw byte arrays in
// externally visible identifiers.
func newNonce(r io.Reader) ([16]byte, error) {
	var n [16]byte
	u, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return n, err
	}
	copy(n[:], u[:])
	return n, nil
}
