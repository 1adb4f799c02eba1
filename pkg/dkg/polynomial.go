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

package dkg

import (
	"io"

	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
)

// Polynomial is a degree-bounded polynomial over the scalar field,
// represented by its coefficient vector a0..a_{t-1}. The constant term a0
// is the secret the polynomial shares; Eval never exposes it directly.
type Polynomial struct {
	coeffs []*group.Scalar
}

// NewRandomPolynomial draws a polynomial of degree threshold-1 with
// uniformly random coefficients from r. Used for both the secret
// polynomial f and the Pedersen mask polynomial g during DKG round 1,
// and for the zero-constant-term delta polynomials used by rotation.
func NewRandomPolynomial(r io.Reader, threshold int) (*Polynomial, error) {
	if threshold < MinThreshold {
		return nil, ErrInvalidThreshold
	}
	coeffs := make([]*group.Scalar, threshold)
	for i := range coeffs {
		c, err := group.RandomScalar(r)
		if err != nil {
			return nil, ErrRngFailure
		}
		coeffs[i] = c
	}
	return &Polynomial{coeffs: coeffs}, nil
}

// NewZeroConstantPolynomial draws a polynomial of degree threshold-1 whose
// constant term is fixed to zero, as required by the rotation engine so
// the group public key is preserved.
func NewZeroConstantPolynomial(r io.Reader, threshold int) (*Polynomial, error) {
	p, err := NewRandomPolynomial(r, threshold)
	if err != nil {
		return nil, err
	}
	p.coeffs[0] = group.NewScalar()
	return p, nil
}

// NewPolynomialFromCoefficients deep-copies the given coefficients into a
// new Polynomial. Used in tests to construct polynomials with fixed,
// small-integer coefficients.
func NewPolynomialFromCoefficients(coeffs []*group.Scalar) *Polynomial {
	out := make([]*group.Scalar, len(coeffs))
	for i, c := range coeffs {
		out[i] = c.Clone()
	}
	return &Polynomial{coeffs: out}
}

// Threshold returns the polynomial's degree-bound t (degree t-1).
func (p *Polynomial) Threshold() int {
	return len(p.coeffs)
}

// ConstantTerm returns a0, the shared secret. Safe to call; unlike Eval
// at x=0 this does not run through Horner's scheme over secret data.
func (p *Polynomial) ConstantTerm() *group.Scalar {
	return p.coeffs[0].Clone()
}

// Coefficients returns a deep copy of the coefficient vector, for
// committing or for tests.
func (p *Polynomial) Coefficients() []*group.Scalar {
	out := make([]*group.Scalar, len(p.coeffs))
	for i, c := range p.coeffs {
		out[i] = c.Clone()
	}
	return out
}

// Eval evaluates the polynomial at x using Horner's scheme, in a number
// of scalar operations depending only on the threshold, never on x or the
// coefficient values. x must be a participant identifier (non-zero); x=0
// would return the constant term through a side-channel-shaped code path
// and is rejected in favor of ConstantTerm.
func (p *Polynomial) Eval(x *group.Scalar) *group.Scalar {
	if x.IsZero() {
		panic("dkg: Eval(0) would reveal the secret through a non-constant-time path; use ConstantTerm()")
	}
	acc := group.NewScalar()
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		acc.Mul(acc, x)
		acc.Add(acc, p.coeffs[i])
	}
	return acc
}

// Zeroize destructively overwrites every coefficient, including the
// secret constant term. Go's garbage collector does not guarantee a
// dropped value's storage is ever overwritten, so this must be called
// explicitly wherever the spec requires destructive release.
func (p *Polynomial) Zeroize() {
	for _, c := range p.coeffs {
		c.Zeroize()
	}
}

// ParticipantScalar maps a 1-based participant id to its scalar
// representation for polynomial evaluation and Lagrange arithmetic.
// Participant id 0 is reserved as the secret-evaluation point and is
// never a valid participant.
func ParticipantScalar(id uint16) (*group.Scalar, error) {
	if id == 0 {
		return nil, ErrInvalidParticipantID
	}
	return group.ScalarFromUint64(uint64(id)), nil
}
