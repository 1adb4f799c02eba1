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

// Package group wraps the Ristretto255 prime-order group: scalars in
// Z/qZ and group elements, with canonical encode/decode and the second
// Pedersen generator H.
package group

import (
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"io"

	"github.com/gtank/ristretto255"
)

// ScalarSize and ElementSize are the canonical encoded lengths.
const (
	ScalarSize  = 32
	ElementSize = 32
)

// pedersenHTag is the published hash-to-point tag for the second Pedersen
// generator. It is never cached in package-level mutable state; every
// caller that needs H recomputes it from this constant.
const pedersenHTag = "FROST-RISTRETTO255-SHA512-v1-PEDERSEN-H"

var (
	// ErrInvalidEncoding is returned when a byte string fails canonical
	// decoding as a scalar or group element.
	ErrInvalidEncoding = errors.New("group: invalid encoding")
	// ErrIdentityElement is returned when the identity element is decoded
	// in a context where it is disallowed.
	ErrIdentityElement = errors.New("group: identity element not allowed")
)

// Scalar is an element of Z/qZ, the Ristretto255 scalar field.
type Scalar struct {
	s *ristretto255.Scalar
}

// NewScalar returns the zero scalar.
func NewScalar() *Scalar {
	return &Scalar{s: ristretto255.NewScalar()}
}

// RandomScalar draws a uniformly random scalar from r by reducing 64
// random bytes mod q. Zero is not excluded.
func RandomScalar(r io.Reader) (*Scalar, error) {
	var buf [64]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	s := ristretto255.NewScalar().FromUniformBytes(buf[:])
	return &Scalar{s: s}, nil
}

// ScalarFromUint64 reduces a small non-negative integer mod q. It is used
// for participant identifiers and test-vector coefficients, never for
// deriving secret material from attacker-influenced input.
func ScalarFromUint64(n uint64) *Scalar {
	var wide [64]byte
	var le [8]byte
	for i := 0; i < 8; i++ {
		le[i] = byte(n >> (8 * i))
	}
	copy(wide[:8], le[:])
	return &Scalar{s: ristretto255.NewScalar().FromUniformBytes(wide[:])}
}

// DecodeScalar performs canonical decoding: out-of-range byte strings
// (value >= q) are rejected, matching the boundary requirement that a
// scalar equal to q or greater must not decode.
func DecodeScalar(b []byte) (*Scalar, error) {
	if len(b) != ScalarSize {
		return nil, ErrInvalidEncoding
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(b); err != nil {
		return nil, ErrInvalidEncoding
	}
	return &Scalar{s: s}, nil
}

// Bytes returns the canonical little-endian 32-byte encoding.
func (s *Scalar) Bytes() []byte {
	return s.s.Encode(nil)
}

func (s *Scalar) Add(a, b *Scalar) *Scalar {
	s.s.Add(a.s, b.s)
	return s
}

func (s *Scalar) Sub(a, b *Scalar) *Scalar {
	s.s.Subtract(a.s, b.s)
	return s
}

func (s *Scalar) Mul(a, b *Scalar) *Scalar {
	s.s.Multiply(a.s, b.s)
	return s
}

func (s *Scalar) Negate(a *Scalar) *Scalar {
	s.s.Negate(a.s)
	return s
}

// Invert sets s = 1/a and returns s. a must be non-zero.
func (s *Scalar) Invert(a *Scalar) (*Scalar, error) {
	if a.IsZero() {
		return nil, ErrZeroScalar
	}
	s.s.Invert(a.s)
	return s, nil
}

// IsZero reports whether the scalar is the additive identity, in constant
// time.
func (s *Scalar) IsZero() bool {
	zero := ristretto255.NewScalar()
	return subtle.ConstantTimeCompare(s.s.Encode(nil), zero.Encode(nil)) == 1
}

// Equal reports equality in constant time.
func (s *Scalar) Equal(o *Scalar) bool {
	return subtle.ConstantTimeCompare(s.s.Encode(nil), o.s.Encode(nil)) == 1
}

// Clone returns an independent copy.
func (s *Scalar) Clone() *Scalar {
	c := ristretto255.NewScalar()
	c.Decode(s.s.Encode(nil))
	return &Scalar{s: c}
}

// ErrZeroScalar indicates an attempted inversion of the zero scalar.
var ErrZeroScalar = errors.New("group: zero scalar has no inverse")

// Zeroize destructively overwrites the scalar's encoded representation.
// Go provides no way to scrub an opaque third-party struct in place, so
// the backing value is replaced with one reduced from an all-zero wide
// buffer, and the stand-in buffer itself is scrubbed.
func (s *Scalar) Zeroize() {
	var wide [64]byte
	s.s = ristretto255.NewScalar().FromUniformBytes(wide[:])
	zeroBytes(wide[:])
}

// Point is an element of the Ristretto255 group.
type Point struct {
	p *ristretto255.Element
}

// NewPoint returns the identity element.
func NewPoint() *Point {
	return &Point{p: ristretto255.NewElement()}
}

// BasePoint returns the group generator G.
func BasePoint() *Point {
	return &Point{p: ristretto255.NewElement().Base()}
}

// PedersenH derives the second Pedersen generator H by hash-to-group of
// the published tag. It is recomputed on every call rather than cached in
// module state, per the no-global-mutable-state design constraint; the
// underlying hash-to-group map is itself deterministic so repeated calls
// always agree.
func PedersenH() *Point {
	h := sha512.Sum512([]byte(pedersenHTag))
	return &Point{p: ristretto255.NewElement().FromUniformBytes(h[:])}
}

// DecodePoint performs canonical decoding, rejecting non-canonical
// encodings. When allowIdentity is false the identity element is also
// rejected, as required for public keys, nonce commitments, and
// verification shares.
func DecodePoint(b []byte, allowIdentity bool) (*Point, error) {
	if len(b) != ElementSize {
		return nil, ErrInvalidEncoding
	}
	e := ristretto255.NewElement()
	if err := e.Decode(b); err != nil {
		return nil, ErrInvalidEncoding
	}
	p := &Point{p: e}
	if !allowIdentity && p.IsIdentity() {
		return nil, ErrIdentityElement
	}
	return p, nil
}

// Bytes returns the canonical 32-byte encoding.
func (p *Point) Bytes() []byte {
	return p.p.Encode(nil)
}

func (p *Point) Add(a, b *Point) *Point {
	p.p.Add(a.p, b.p)
	return p
}

func (p *Point) Sub(a, b *Point) *Point {
	p.p.Subtract(a.p, b.p)
	return p
}

func (p *Point) Negate(a *Point) *Point {
	p.p.Negate(a.p)
	return p
}

func (p *Point) ScalarMult(s *Scalar, a *Point) *Point {
	p.p.ScalarMult(s.s, a.p)
	return p
}

func (p *Point) ScalarBaseMult(s *Scalar) *Point {
	p.p.ScalarBaseMult(s.s)
	return p
}

// Equal reports equality in constant time.
func (p *Point) Equal(o *Point) bool {
	return subtle.ConstantTimeCompare(p.p.Encode(nil), o.p.Encode(nil)) == 1
}

// IsIdentity reports whether p is the group identity, in constant time.
func (p *Point) IsIdentity() bool {
	id := ristretto255.NewElement()
	return subtle.ConstantTimeCompare(p.p.Encode(nil), id.Encode(nil)) == 1
}

func (p *Point) Clone() *Point {
	c := ristretto255.NewElement()
	c.Decode(p.p.Encode(nil))
	return &Point{p: c}
}

// newRistrettoScalarFromWide reduces a 64-byte wide value (e.g. a
// SHA-512 digest) mod q.
func newRistrettoScalarFromWide(wide []byte) *ristretto255.Scalar {
	return ristretto255.NewScalar().FromUniformBytes(wide)
}

// DecodeWideScalar reduces an arbitrary key-derivation digest (e.g. an
// HMAC-SHA512 output) mod q. Unlike DecodeScalar it never rejects its
// input — it is for deriving a scalar from a wide hash output, not for
// parsing a canonically-encoded scalar off the wire.
func DecodeWideScalar(wide []byte) *Scalar {
	return &Scalar{s: newRistrettoScalarFromWide(wide)}
}

// zeroBytes destructively overwrites b so the store cannot be elided by
// the compiler.
func zeroBytes(b []byte) {
	z := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, z)
}
