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
	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
)

// Commitment is a dealer's public Pedersen commitment to its pair of
// degree-(t-1) polynomials (f, g). It is carried as two parallel point
// vectors rather than their sum: Feldman[k] = f.coeffs[k]*G is the plain
// Feldman (G-only) component, Blinding[k] = g.coeffs[k]*H is the Pedersen
// mask. Their sum at each index is the hiding Pedersen commitment used by
// VerifyShare; Feldman alone, summed across dealers, is what the group
// public key and per-participant verification shares are built from
// (spec's "G-component of C_k").
type Commitment struct {
	Feldman  []*group.Point
	Blinding []*group.Point
}

// Commit produces the commitment vector pair for the dealer's polynomials
// (f, g). f and g must share the same threshold.
func Commit(f, g *Polynomial) (*Commitment, error) {
	if f.Threshold() != g.Threshold() {
		return nil, ErrMismatchedThreshold
	}
	fc := f.Coefficients()
	gc := g.Coefficients()
	feldman := make([]*group.Point, len(fc))
	blinding := make([]*group.Point, len(gc))
	for k := range fc {
		feldman[k] = group.NewPoint().ScalarBaseMult(fc[k])
		blinding[k] = group.NewPoint().ScalarMult(gc[k], group.PedersenH())
	}
	return &Commitment{Feldman: feldman, Blinding: blinding}, nil
}

// Threshold returns the degree-bound t implied by the commitment length.
func (c *Commitment) Threshold() int {
	return len(c.Feldman)
}

// pedersenAt returns C_k = Feldman[k] + Blinding[k], the hiding
// commitment entry used by the share-verification identity.
func (c *Commitment) pedersenAt(k int) *group.Point {
	return group.NewPoint().Add(c.Feldman[k], c.Blinding[k])
}

// ConstantTermIsIdentity reports whether the Feldman (G-only) component
// of the constant-term entry is the group identity — the additional
// binding check the rotation engine runs, since a valid delta polynomial
// has constant term fixed to zero.
func (c *Commitment) ConstantTermIsIdentity() bool {
	return c.Feldman[0].IsIdentity()
}

// evaluatePedersenAt computes Sigma_k x^k * (Feldman[k]+Blinding[k]), the
// right-hand side of the commitment-evaluation identity at x.
func (c *Commitment) evaluatePedersenAt(x *group.Scalar) *group.Point {
	acc := group.NewPoint()
	xPow := group.ScalarFromUint64(1)
	for k := range c.Feldman {
		term := group.NewPoint().ScalarMult(xPow, c.pedersenAt(k))
		acc.Add(acc, term)
		xPow = group.NewScalar().Mul(xPow, x)
	}
	return acc
}

// evaluateFeldmanAt computes Sigma_k x^k * Feldman[k], used publicly to
// accumulate verification shares (x = participant id). The group public
// key needs only Feldman[0], which Finalize reads directly.
func (c *Commitment) evaluateFeldmanAt(x *group.Scalar) *group.Point {
	acc := group.NewPoint()
	xPow := group.ScalarFromUint64(1)
	for k := range c.Feldman {
		term := group.NewPoint().ScalarMult(xPow, c.Feldman[k])
		acc.Add(acc, term)
		xPow = group.NewScalar().Mul(xPow, x)
	}
	return acc
}

// EvaluateFeldmanAt exposes evaluateFeldmanAt to other packages: the
// rotation engine folds delta commitments and needs to evaluate the
// folded Feldman vector at each participant id to update verification
// shares without reconstructing any secret.
func (c *Commitment) EvaluateFeldmanAt(x *group.Scalar) *group.Point {
	return c.evaluateFeldmanAt(x)
}

// VerifyShare checks the commitment-evaluation identity
// f(j)*G + g(j)*H == Sigma_k j^k * C_k for a dealt share pair (fShare,
// gShare) destined for participant j. This is the sole means by which a
// receiver verifies a dealt share.
func (c *Commitment) VerifyShare(j uint16, fShare, gShare *group.Scalar) error {
	jScalar, err := ParticipantScalar(j)
	if err != nil {
		return err
	}
	lhs := group.NewPoint().Add(
		group.NewPoint().ScalarBaseMult(fShare),
		group.NewPoint().ScalarMult(gShare, group.PedersenH()),
	)
	rhs := c.evaluatePedersenAt(jScalar)
	if !lhs.Equal(rhs) {
		return ErrVerificationFailed
	}
	return nil
}

// ToBytes serializes the commitment as a flat concatenation of
// canonically encoded points: Feldman0..Feldman_{t-1} followed by
// Blinding0..Blinding_{t-1}, matching the DKG commitment wire message
// body (twice the point count spec's shorthand "C0 .. C_{t-1}" implies,
// since each logical Ck is itself a (Feldman, Blinding) pair).
func (c *Commitment) ToBytes() []byte {
	out := make([]byte, 0, 2*len(c.Feldman)*group.ElementSize)
	for _, p := range c.Feldman {
		out = append(out, p.Bytes()...)
	}
	for _, p := range c.Blinding {
		out = append(out, p.Bytes()...)
	}
	return out
}

// CommitmentFromBytes parses the flat encoding produced by ToBytes. Every
// Feldman entry is rejected if it decodes to the identity, unless
// allowZeroConstant is set, in which case the Feldman constant-term entry
// (index 0) alone may be the identity — the expected shape of a rotation
// delta commitment. Blinding entries may always be the identity.
func CommitmentFromBytes(b []byte, threshold int, allowZeroConstant bool) (*Commitment, error) {
	if threshold <= 0 || len(b) != 2*threshold*group.ElementSize {
		return nil, ErrInvalidCommitmentLen
	}
	decodeAt := func(idx int, allowIdentity bool) (*group.Point, error) {
		chunk := b[idx*group.ElementSize : (idx+1)*group.ElementSize]
		p, err := group.DecodePoint(chunk, allowIdentity)
		if err != nil {
			if err == group.ErrIdentityElement {
				return nil, ErrIdentityInCommitment
			}
			return nil, ErrInvalidEncoding
		}
		return p, nil
	}
	feldman := make([]*group.Point, threshold)
	for k := 0; k < threshold; k++ {
		allowIdentity := allowZeroConstant && k == 0
		p, err := decodeAt(k, allowIdentity)
		if err != nil {
			return nil, err
		}
		feldman[k] = p
	}
	blinding := make([]*group.Point, threshold)
	for k := 0; k < threshold; k++ {
		p, err := decodeAt(threshold+k, true)
		if err != nil {
			return nil, err
		}
		blinding[k] = p
	}
	return &Commitment{Feldman: feldman, Blinding: blinding}, nil
}

// Add returns the element-wise sum of two same-threshold commitments,
// used by the rotation engine to fold each participant's delta
// commitment into the running sum.
func (c *Commitment) Add(o *Commitment) (*Commitment, error) {
	if c.Threshold() != o.Threshold() {
		return nil, ErrMismatchedThreshold
	}
	feldman := make([]*group.Point, c.Threshold())
	blinding := make([]*group.Point, c.Threshold())
	for k := range feldman {
		feldman[k] = group.NewPoint().Add(c.Feldman[k], o.Feldman[k])
		blinding[k] = group.NewPoint().Add(c.Blinding[k], o.Blinding[k])
	}
	return &Commitment{Feldman: feldman, Blinding: blinding}, nil
}
