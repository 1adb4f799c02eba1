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

type ceremonyState int

const (
	stateCommitted ceremonyState = iota
	stateFinalized
	stateAborted
)

type dealing struct {
	fShare *group.Scalar
	gShare *group.Scalar
}

// Ceremony is one participant's single-use view of a Pedersen VSS-based
// DKG ceremony. It is constructed, deals and receives shares during round
// 2, and terminates exactly once in either Finalize or Abort. Reuse after
// termination is rejected.
type Ceremony struct {
	id        uint16
	threshold int
	n         int

	f, g       *Polynomial
	commitment *Commitment

	received map[uint16]dealing

	state ceremonyState
}

// NewCeremony starts a ceremony for participant id, drawing fresh random
// polynomials f and g of degree threshold-1 from r and committing to
// them. Own (f(id), g(id)) is retained immediately so Finalize never
// needs to re-derive it.
func NewCeremony(r io.Reader, id uint16, threshold, n int) (*Ceremony, error) {
	if n < MinParticipants || n > MaxParticipants {
		return nil, ErrInvalidParticipants
	}
	if threshold < MinThreshold || threshold > n {
		return nil, ErrInvalidThreshold
	}
	if id == 0 || int(id) > n {
		return nil, ErrInvalidParticipantID
	}

	f, err := NewRandomPolynomial(r, threshold)
	if err != nil {
		return nil, err
	}
	g, err := NewRandomPolynomial(r, threshold)
	if err != nil {
		f.Zeroize()
		return nil, err
	}
	commitment, err := Commit(f, g)
	if err != nil {
		f.Zeroize()
		g.Zeroize()
		return nil, err
	}

	idScalar, _ := ParticipantScalar(id)
	ownF := f.Eval(idScalar)
	ownG := g.Eval(idScalar)

	c := &Ceremony{
		id:         id,
		threshold:  threshold,
		n:          n,
		f:          f,
		g:          g,
		commitment: commitment,
		received:   map[uint16]dealing{id: {fShare: ownF, gShare: ownG}},
		state:      stateCommitted,
	}
	return c, nil
}

// newCeremonyFromPolynomials builds a ceremony from caller-supplied
// polynomials instead of drawing them from an RNG. It exists so tests can
// reproduce the fixed-coefficient scenarios the test suite specifies
// without threading a deterministic RNG stream through NewCeremony.
func newCeremonyFromPolynomials(id uint16, threshold, n int, f, g *Polynomial) (*Ceremony, error) {
	if n < MinParticipants || n > MaxParticipants {
		return nil, ErrInvalidParticipants
	}
	if threshold < MinThreshold || threshold > n {
		return nil, ErrInvalidThreshold
	}
	if id == 0 || int(id) > n {
		return nil, ErrInvalidParticipantID
	}
	commitment, err := Commit(f, g)
	if err != nil {
		return nil, err
	}
	idScalar, _ := ParticipantScalar(id)
	return &Ceremony{
		id:         id,
		threshold:  threshold,
		n:          n,
		f:          f,
		g:          g,
		commitment: commitment,
		received:   map[uint16]dealing{id: {fShare: f.Eval(idScalar), gShare: g.Eval(idScalar)}},
		state:      stateCommitted,
	}, nil
}

// Commitment returns this participant's round-1 broadcast commitment.
func (c *Ceremony) Commitment() *Commitment {
	return c.commitment
}

// DealShare evaluates (f(recipient), g(recipient)) for a point-to-point
// send in round 2. It may be called once per recipient id other than the
// ceremony's own id.
func (c *Ceremony) DealShare(recipientID uint16) (*group.Scalar, *group.Scalar, error) {
	if c.state != stateCommitted {
		return nil, nil, ErrProtocolState
	}
	if recipientID == 0 || int(recipientID) > c.n {
		return nil, nil, ErrInvalidParticipantID
	}
	recipientScalar, _ := ParticipantScalar(recipientID)
	return c.f.Eval(recipientScalar), c.g.Eval(recipientScalar), nil
}

// ReceiveDealing verifies an incoming (fShare, gShare) pair from dealerID
// against the dealer's published commitment, using the
// commitment-evaluation identity. A failing check aborts the ceremony and
// destructively overwrites this participant's own secret polynomials
// before returning a VerificationFailedError naming the dealer.
func (c *Ceremony) ReceiveDealing(dealerID uint16, dealerCommitment *Commitment, fShare, gShare *group.Scalar) error {
	if c.state != stateCommitted {
		return ErrProtocolState
	}
	if dealerID == 0 || int(dealerID) > c.n || dealerID == c.id {
		return ErrInvalidParticipantID
	}
	if dealerCommitment.Threshold() != c.threshold {
		return ErrMismatchedThreshold
	}
	if _, ok := c.received[dealerID]; ok {
		return ErrDuplicateParticipant
	}

	if err := dealerCommitment.VerifyShare(c.id, fShare, gShare); err != nil {
		c.abortLocked()
		return NewVerificationFailedError(dealerID)
	}

	c.received[dealerID] = dealing{fShare: fShare.Clone(), gShare: gShare.Clone()}
	return nil
}

// Abort terminates the ceremony early (caller-driven cancellation,
// timeout, or drop) and destructively overwrites all secret material.
func (c *Ceremony) Abort() {
	if c.state == stateFinalized || c.state == stateAborted {
		return
	}
	c.abortLocked()
}

func (c *Ceremony) abortLocked() {
	c.f.Zeroize()
	c.g.Zeroize()
	for id, d := range c.received {
		d.fShare.Zeroize()
		d.gShare.Zeroize()
		delete(c.received, id)
	}
	c.state = stateAborted
}

// Finalize computes this participant's long-term share, the group public
// key, and every participant's verification share, given every
// participant's round-1 commitment. It requires a verified dealing from
// every one of the n participants (including the ceremony's own
// self-dealing, recorded at construction).
func (c *Ceremony) Finalize(allCommitments map[uint16]*Commitment) (*Result, error) {
	if c.state != stateCommitted {
		return nil, ErrProtocolState
	}
	if len(c.received) != c.n || len(allCommitments) != c.n {
		return nil, ErrNotAllDealingsPresent
	}

	secret := group.NewScalar()
	for id, d := range c.received {
		secret.Add(secret, d.fShare)
		if allCommitments[id] == nil {
			c.abortLocked()
			return nil, ErrNotAllDealingsPresent
		}
	}

	pk := group.NewPoint()
	for _, comm := range allCommitments {
		if comm.Threshold() != c.threshold {
			c.abortLocked()
			return nil, ErrMismatchedThreshold
		}
		pk.Add(pk, comm.Feldman[0])
	}

	verificationShares := make(map[uint16]*VerificationShare, c.n)
	for j := uint16(1); int(j) <= c.n; j++ {
		jScalar, _ := ParticipantScalar(j)
		y := group.NewPoint()
		for _, comm := range allCommitments {
			y.Add(y, comm.evaluateFeldmanAt(jScalar))
		}
		verificationShares[j] = &VerificationShare{ID: j, Point: y}
	}

	// Every received dealing, f-share and g-share alike, has served its
	// purpose once folded into secret and checked against the Pedersen
	// identity; only the aggregated long-term secret survives
	// finalization.
	for id, d := range c.received {
		d.fShare.Zeroize()
		d.gShare.Zeroize()
		delete(c.received, id)
	}
	c.f.Zeroize()
	c.g.Zeroize()
	c.state = stateFinalized

	return &Result{
		Share:              &SecretShare{ID: c.id, Value: secret},
		GroupPublicKey:     pk,
		VerificationShares: verificationShares,
		Threshold:          c.threshold,
	}, nil
}
