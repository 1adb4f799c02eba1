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

package signing

import (
	"io"
	"sort"

	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
)

// State is the signing session's linear state machine. Backward
// transitions are forbidden and the nonce pair is unusable from any state
// after Round2Signed.
type State int

const (
	StateRound1Committed State = iota
	StateRound2Ready
	StateRound2Signed
	StateAggregated
	StateAborted
)

// Commitment is a signer's round-1 broadcast: (D, E) = (d*G, e*G).
type Commitment struct {
	ID uint16
	D  *group.Point
	E  *group.Point
}

// PartialSignature is a signer's round-2 broadcast.
type PartialSignature struct {
	ID uint16
	Z  *group.Scalar
}

// Signature is the aggregated standard Schnorr signature, verifiable as
// z*G == R + c*PK.
type Signature struct {
	R *group.Point
	Z *group.Scalar
}

// Session is one signer's single-use view of a two-round FROST signing
// ceremony over a fixed (signer set, message) pair.
type Session struct {
	ownID      uint16
	signerSet  []uint16 // sorted ascending
	threshold  int
	message    []byte
	share      *group.Scalar
	groupKey   *group.Point
	verShares  map[uint16]*group.Point

	d, e          *group.Scalar
	ownCommitment *Commitment

	peerCommitments map[uint16]*Commitment
	rho             map[uint16]*group.Scalar
	lambda          map[uint16]*group.Scalar
	groupCommitment *group.Point
	challenge       *group.Scalar

	state State
}

// NewSession starts a signing session. signerSet must have no duplicate
// ids, must contain ownID, and must have size >= threshold — the session
// setup invariant from spec 4.4 ("|S| >= t"), enforced here rather than
// left for Aggregate to discover later.
func NewSession(
	r io.Reader,
	ownID uint16,
	signerSet []uint16,
	threshold int,
	message []byte,
	share *group.Scalar,
	groupKey *group.Point,
	verificationShares map[uint16]*group.Point,
) (*Session, error) {
	sorted := append([]uint16(nil), signerSet...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	seen := make(map[uint16]bool, len(sorted))
	foundOwn := false
	for _, id := range sorted {
		if seen[id] {
			return nil, ErrDuplicateSigner
		}
		seen[id] = true
		if id == ownID {
			foundOwn = true
		}
	}
	if !foundOwn {
		return nil, ErrUnknownSigner
	}
	if len(sorted) < threshold {
		return nil, ErrInsufficientSigners
	}

	d, err := group.RandomScalar(r)
	if err != nil {
		return nil, err
	}
	e, err := group.RandomScalar(r)
	if err != nil {
		d.Zeroize()
		return nil, err
	}

	s := &Session{
		ownID:     ownID,
		signerSet: sorted,
		threshold: threshold,
		message:   append([]byte(nil), message...),
		share:     share,
		groupKey:  groupKey,
		verShares: verificationShares,
		d:         d,
		e:         e,
		ownCommitment: &Commitment{
			ID: ownID,
			D:  group.NewPoint().ScalarBaseMult(d),
			E:  group.NewPoint().ScalarBaseMult(e),
		},
		peerCommitments: make(map[uint16]*Commitment, len(sorted)),
		state:           StateRound1Committed,
	}
	s.peerCommitments[ownID] = s.ownCommitment
	return s, nil
}

// Round1Commitment returns this signer's (D, E) broadcast.
func (s *Session) Round1Commitment() *Commitment {
	return s.ownCommitment
}

// AddPeerCommitment records a peer's round-1 broadcast. It is only valid
// while the session is still gathering commitments.
func (s *Session) AddPeerCommitment(c *Commitment) error {
	if s.state != StateRound1Committed {
		return ErrProtocolState
	}
	if !s.isSigner(c.ID) {
		return ErrUnknownSigner
	}
	if _, ok := s.peerCommitments[c.ID]; ok && c.ID != s.ownID {
		return ErrDuplicateSigner
	}
	s.peerCommitments[c.ID] = c
	return nil
}

func (s *Session) isSigner(id uint16) bool {
	for _, sid := range s.signerSet {
		if sid == id {
			return true
		}
	}
	return false
}

// ReadyForRound2 reports whether every signer's commitment has been
// gathered.
func (s *Session) ReadyForRound2() bool {
	return len(s.peerCommitments) == len(s.signerSet)
}

// FinalizeRound1 computes the binding factors, the group commitment R,
// the challenge c, and every signer's Lagrange coefficient, transitioning
// Round1Committed -> Round2Ready. It requires every signer's commitment
// to have been gathered first.
func (s *Session) FinalizeRound1() error {
	if s.state != StateRound1Committed {
		return ErrProtocolState
	}
	if !s.ReadyForRound2() {
		return ErrMissingCommitment
	}

	s.rho = computeBindingFactors(s.message, s.signerSet, s.peerCommitments)

	R := group.NewPoint()
	for _, id := range s.signerSet {
		c := s.peerCommitments[id]
		rhoE := group.NewPoint().ScalarMult(s.rho[id], c.E)
		term := group.NewPoint().Add(c.D, rhoE)
		R.Add(R, term)
	}
	s.groupCommitment = R

	tr := group.NewTranscript("challenge")
	tr.AppendPoint("R", R)
	tr.AppendPoint("PK", s.groupKey)
	tr.AppendMessage("m", s.message)
	s.challenge = tr.SqueezeScalar()

	s.lambda = make(map[uint16]*group.Scalar, len(s.signerSet))
	for _, id := range s.signerSet {
		s.lambda[id] = lagrangeCoefficient(id, s.signerSet)
	}

	s.state = StateRound2Ready
	return nil
}

// Round2Sign computes this signer's partial signature
// zᵢ = dᵢ + ρᵢ·eᵢ + λᵢ,S·sᵢ·c and immediately zeroizes the nonce pair,
// transitioning Round2Ready -> Round2Signed. The nonces are unusable from
// any later state.
func (s *Session) Round2Sign() (*PartialSignature, error) {
	if s.state != StateRound2Ready {
		return nil, ErrProtocolState
	}

	rho := s.rho[s.ownID]
	lambda := s.lambda[s.ownID]

	rhoE := group.NewScalar().Mul(rho, s.e)
	z := group.NewScalar().Add(s.d, rhoE)
	lambdaS := group.NewScalar().Mul(lambda, s.share)
	lambdaSC := group.NewScalar().Mul(lambdaS, s.challenge)
	z.Add(z, lambdaSC)

	s.d.Zeroize()
	s.e.Zeroize()
	s.state = StateRound2Signed

	return &PartialSignature{ID: s.ownID, Z: z}, nil
}

// VerifyPartial checks zᵢ·G == Dᵢ + ρᵢ·Eᵢ + c·λᵢ,S·Yᵢ for a given partial
// signature, usable by a coordinator or any peer once binding factors and
// the challenge have been computed.
func (s *Session) VerifyPartial(ps *PartialSignature) error {
	if s.state != StateRound2Ready && s.state != StateRound2Signed {
		return ErrProtocolState
	}
	comm, ok := s.peerCommitments[ps.ID]
	if !ok {
		return ErrUnknownSigner
	}
	y, ok := s.verShares[ps.ID]
	if !ok {
		return ErrUnknownSigner
	}

	lhs := group.NewPoint().ScalarBaseMult(ps.Z)

	rhoE := group.NewPoint().ScalarMult(s.rho[ps.ID], comm.E)
	rhs := group.NewPoint().Add(comm.D, rhoE)
	cLambda := group.NewScalar().Mul(s.challenge, s.lambda[ps.ID])
	cLambdaY := group.NewPoint().ScalarMult(cLambda, y)
	rhs.Add(rhs, cLambdaY)

	if !lhs.Equal(rhs) {
		return &PartialVerificationError{ParticipantID: ps.ID}
	}
	return nil
}

// Aggregate combines partial signatures into the final signature. Any
// partial failing VerifyPartial aborts the session and is reported with
// its signer's id, per the core error-propagation rule that signing
// verification failures abort rather than retry.
func (s *Session) Aggregate(partials []*PartialSignature) (*Signature, error) {
	if s.state != StateRound2Ready && s.state != StateRound2Signed {
		return nil, ErrProtocolState
	}
	for _, ps := range partials {
		if err := s.VerifyPartial(ps); err != nil {
			s.state = StateAborted
			return nil, err
		}
	}

	z := group.NewScalar()
	for _, ps := range partials {
		z.Add(z, ps.Z)
	}
	sig := &Signature{R: s.groupCommitment, Z: z}

	if !Verify(s.message, sig, s.groupKey) {
		s.state = StateAborted
		return nil, ErrVerificationFailed
	}

	s.state = StateAggregated
	return sig, nil
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// Abort terminates the session early, destructively overwriting the
// nonce pair if it has not already been consumed by Round2Sign.
func (s *Session) Abort() {
	if s.state == StateAggregated || s.state == StateAborted {
		return
	}
	if s.d != nil {
		s.d.Zeroize()
	}
	if s.e != nil {
		s.e.Zeroize()
	}
	s.state = StateAborted
}

// Verify checks a standard Schnorr signature against a group public key:
// z*G == R + c*PK, c = H_c(R, PK, m).
func Verify(message []byte, sig *Signature, groupKey *group.Point) bool {
	tr := group.NewTranscript("challenge")
	tr.AppendPoint("R", sig.R)
	tr.AppendPoint("PK", groupKey)
	tr.AppendMessage("m", message)
	c := tr.SqueezeScalar()

	lhs := group.NewPoint().ScalarBaseMult(sig.Z)
	cPK := group.NewPoint().ScalarMult(c, groupKey)
	rhs := group.NewPoint().Add(sig.R, cPK)
	return lhs.Equal(rhs)
}

// computeBindingFactors derives rho_j = H_rho(m, j, sorted commitments)
// for every signer j in the set, via the rho-labeled transcript. Sorting
// by participant id makes rho agreement automatic across independently
// computing signers.
func computeBindingFactors(message []byte, sortedSigners []uint16, commitments map[uint16]*Commitment) map[uint16]*group.Scalar {
	rho := make(map[uint16]*group.Scalar, len(sortedSigners))
	for _, id := range sortedSigners {
		tr := group.NewTranscript("rho")
		tr.AppendMessage("m", message)
		for _, sid := range sortedSigners {
			c := commitments[sid]
			tr.AppendUint16("id", sid)
			tr.AppendPoint("D", c.D)
			tr.AppendPoint("E", c.E)
		}
		tr.AppendUint16("for", id)
		rho[id] = tr.SqueezeScalar()
	}
	return rho
}

// lagrangeCoefficient computes lambda_i,S = Prod_{j in S, j != i} j/(j-i).
func lagrangeCoefficient(i uint16, signerSet []uint16) *group.Scalar {
	num := group.ScalarFromUint64(1)
	den := group.ScalarFromUint64(1)
	iScalar := group.ScalarFromUint64(uint64(i))

	for _, j := range signerSet {
		if j == i {
			continue
		}
		jScalar := group.ScalarFromUint64(uint64(j))
		num = group.NewScalar().Mul(num, jScalar)
		diff := group.NewScalar().Sub(jScalar, iScalar)
		den = group.NewScalar().Mul(den, diff)
	}

	denInv, err := group.NewScalar().Invert(den)
	if err != nil {
		panic("signing: distinct signer ids must yield an invertible denominator")
	}
	return group.NewScalar().Mul(num, denInv)
}
