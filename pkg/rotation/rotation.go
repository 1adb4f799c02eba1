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

// Package rotation implements proactive share refresh: participants deal
// zero-constant-term delta polynomials exactly as in DKG round 2, so the
// group public key is preserved while every long-term share changes.
package rotation

import (
	"errors"
	"fmt"
	"io"

	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/dkg"
	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/signing"
)

type roundState int

const (
	stateCommitted roundState = iota
	stateFinalized
	stateAborted
)

var (
	// ErrProtocolState reports an operation attempted from the wrong
	// state-machine state.
	ErrProtocolState = errors.New("rotation: operation invalid in current state")

	// ErrNotAllDeltasPresent reports Finalize called before every
	// participant's delta dealing has been received and verified.
	ErrNotAllDeltasPresent = errors.New("rotation: not all delta dealings present")

	// ErrNonZeroConstantTerm reports a delta commitment whose Feldman
	// constant-term entry is not the group identity, violating the
	// PK-preservation invariant.
	ErrNonZeroConstantTerm = errors.New("rotation: delta commitment has non-zero constant term")

	// ErrVerificationFailed is the sentinel matched by
	// VerificationFailedError.Is.
	ErrVerificationFailed = errors.New("rotation: verification failed")
)

// VerificationFailedError reports that a dealt delta share failed the
// commitment-evaluation identity, attributed to the dealer.
type VerificationFailedError struct {
	ParticipantID uint16
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("rotation: verification failed for participant %d", e.ParticipantID)
}

func (e *VerificationFailedError) Is(target error) bool {
	return target == ErrVerificationFailed
}

type dealing struct {
	share *group.Scalar
}

// Round is one participant's single-use view of a proactive refresh
// round. It is constructed with the participant's current long-term
// share, deals and receives zero-constant delta evaluations exactly as
// DKG round 2, and terminates in either a new share set or an abort.
type Round struct {
	id        uint16
	threshold int
	n         int

	oldShare *dkg.SecretShare
	oldPK    *group.Point

	delta      *dkg.Polynomial
	blind      *dkg.Polynomial
	commitment *dkg.Commitment

	received map[uint16]dealing

	state roundState
}

// NewRound starts a refresh round for participant id, drawing a fresh
// zero-constant-term delta polynomial from r. oldShare is retained only
// long enough to fold delta contributions into it at Finalize, then
// destructively overwritten.
func NewRound(r io.Reader, id uint16, threshold, n int, oldShare *dkg.SecretShare, oldPK *group.Point) (*Round, error) {
	if id == 0 || int(id) > n {
		return nil, dkg.ErrInvalidParticipantID
	}
	delta, err := dkg.NewZeroConstantPolynomial(r, threshold)
	if err != nil {
		return nil, err
	}
	blind, err := dkg.NewRandomPolynomial(r, threshold)
	if err != nil {
		delta.Zeroize()
		return nil, err
	}
	commitment, err := dkg.Commit(delta, blind)
	if err != nil {
		delta.Zeroize()
		blind.Zeroize()
		return nil, err
	}
	if !commitment.ConstantTermIsIdentity() {
		delta.Zeroize()
		blind.Zeroize()
		return nil, ErrNonZeroConstantTerm
	}

	idScalar, _ := dkg.ParticipantScalar(id)
	ownDelta := delta.Eval(idScalar)

	rnd := &Round{
		id:         id,
		threshold:  threshold,
		n:          n,
		oldShare:   oldShare,
		oldPK:      oldPK,
		delta:      delta,
		blind:      blind,
		commitment: commitment,
		received:   map[uint16]dealing{id: {share: ownDelta}},
		state:      stateCommitted,
	}
	return rnd, nil
}

// Commitment returns this participant's delta commitment broadcast.
func (r *Round) Commitment() *dkg.Commitment {
	return r.commitment
}

// DealShare evaluates (delta(recipient), blind(recipient)) for a
// point-to-point send, mirroring DKG's DealShare.
func (r *Round) DealShare(recipientID uint16) (*group.Scalar, *group.Scalar, error) {
	if r.state != stateCommitted {
		return nil, nil, ErrProtocolState
	}
	if recipientID == 0 || int(recipientID) > r.n {
		return nil, nil, dkg.ErrInvalidParticipantID
	}
	recipientScalar, _ := dkg.ParticipantScalar(recipientID)
	return r.delta.Eval(recipientScalar), r.blind.Eval(recipientScalar), nil
}

// ReceiveDealing verifies an incoming (deltaShare, blindShare) pair
// against the dealer's published delta commitment, using the same
// commitment-evaluation identity as DKG round 2.
func (r *Round) ReceiveDealing(dealerID uint16, dealerCommitment *dkg.Commitment, deltaShare *group.Scalar, blindShare *group.Scalar) error {
	if r.state != stateCommitted {
		return ErrProtocolState
	}
	if dealerID == 0 || int(dealerID) > r.n || dealerID == r.id {
		return dkg.ErrInvalidParticipantID
	}
	if !dealerCommitment.ConstantTermIsIdentity() {
		r.abortLocked()
		return ErrNonZeroConstantTerm
	}
	if _, ok := r.received[dealerID]; ok {
		return dkg.ErrDuplicateParticipant
	}

	if err := dealerCommitment.VerifyShare(r.id, deltaShare, blindShare); err != nil {
		r.abortLocked()
		return &VerificationFailedError{ParticipantID: dealerID}
	}

	r.received[dealerID] = dealing{share: deltaShare.Clone()}
	return nil
}

// Abort terminates the round early, destructively overwriting all secret
// material gathered so far.
func (r *Round) Abort() {
	if r.state == stateFinalized || r.state == stateAborted {
		return
	}
	r.abortLocked()
}

func (r *Round) abortLocked() {
	r.delta.Zeroize()
	r.blind.Zeroize()
	for id, d := range r.received {
		d.share.Zeroize()
		delete(r.received, id)
	}
	if r.oldShare != nil {
		r.oldShare.Zeroize()
	}
	r.state = stateAborted
}

// Result is the outcome of a finalized refresh round: the new long-term
// share and updated verification shares, with the group public key
// unchanged.
type Result struct {
	NewShare           *dkg.SecretShare
	GroupPublicKey     *group.Point
	VerificationShares map[uint16]*dkg.VerificationShare
	Threshold          int
}

// Finalize folds every received delta into the old share, producing
// s'_j = s_j + Sum_i delta_i(j), and updates verification shares to
// Y'_j = s'_j*G using the folded delta commitment plus the previous
// verification shares. The old share is destructively overwritten before
// the new one is returned, and PK is asserted unchanged.
func (r *Round) Finalize(allDeltaCommitments map[uint16]*dkg.Commitment, oldVerificationShares map[uint16]*dkg.VerificationShare) (*Result, error) {
	if r.state != stateCommitted {
		return nil, ErrProtocolState
	}
	if len(r.received) != r.n || len(allDeltaCommitments) != r.n {
		return nil, ErrNotAllDeltasPresent
	}

	deltaSum := group.NewScalar()
	for _, d := range r.received {
		deltaSum.Add(deltaSum, d.share)
	}

	newValue := group.NewScalar().Add(r.oldShare.Value, deltaSum)

	var folded *dkg.Commitment
	for _, c := range allDeltaCommitments {
		if !c.ConstantTermIsIdentity() {
			r.abortLocked()
			return nil, ErrNonZeroConstantTerm
		}
		if folded == nil {
			folded = c
			continue
		}
		merged, err := folded.Add(c)
		if err != nil {
			r.abortLocked()
			return nil, err
		}
		folded = merged
	}

	verificationShares := make(map[uint16]*dkg.VerificationShare, r.n)
	for j := uint16(1); int(j) <= r.n; j++ {
		jScalar, _ := dkg.ParticipantScalar(j)
		deltaContribution := folded.EvaluateFeldmanAt(jScalar)
		old, ok := oldVerificationShares[j]
		if !ok {
			r.abortLocked()
			return nil, ErrNotAllDeltasPresent
		}
		y := group.NewPoint().Add(old.Point, deltaContribution)
		verificationShares[j] = &dkg.VerificationShare{ID: j, Point: y}
	}

	r.oldShare.Zeroize()
	r.delta.Zeroize()
	r.blind.Zeroize()
	for _, d := range r.received {
		d.share.Zeroize()
	}
	r.state = stateFinalized

	return &Result{
		NewShare:           &dkg.SecretShare{ID: r.id, Value: newValue},
		GroupPublicKey:     r.oldPK,
		VerificationShares: verificationShares,
		Threshold:          r.threshold,
	}, nil
}

// ProofDescriptor is the payload a rotation proof signs: a
// transparency-log entry attesting that the group public key survived a
// refresh round. SignProof produces the signature over it by driving
// signing.Session values; the signing math itself lives in pkg/signing.
type ProofDescriptor struct {
	GroupPublicKey *group.Point
	Epoch          uint32
}

// Message returns the canonical message a rotation-proof signing session
// signs: PK and epoch absorbed as labeled elements of a
// "rotation-proof"-role transcript, the same construction pkg/signing
// uses for rho and challenge. Routing the descriptor through its own role
// rather than signing PK||epoch directly means the resulting message can
// never collide with an arbitrary caller-chosen message signed through
// the generic signing engine under a different role.
func (d *ProofDescriptor) Message() []byte {
	tr := group.NewTranscript("rotation-proof")
	tr.AppendPoint("group_public_key", d.GroupPublicKey)
	tr.AppendUint32("epoch", d.Epoch)
	return tr.SqueezeScalar().Bytes()
}

// SignProof runs a full threshold-signing round over a rotation proof
// descriptor using the freshly rotated shares and verification shares,
// producing the signature published to the external transparency log.
// Every id in signerSet must have a corresponding entry in newShares and
// verificationShares; signerSet must satisfy the same |S| >= t invariant
// signing.NewSession enforces.
func SignProof(r io.Reader, desc *ProofDescriptor, signerSet []uint16, threshold int, newShares map[uint16]*group.Scalar, verificationShares map[uint16]*group.Point) (*signing.Signature, error) {
	message := desc.Message()

	sessions := make(map[uint16]*signing.Session, len(signerSet))
	for _, id := range signerSet {
		s, err := signing.NewSession(r, id, signerSet, threshold, message, newShares[id], desc.GroupPublicKey, verificationShares)
		if err != nil {
			return nil, err
		}
		sessions[id] = s
	}
	for _, id := range signerSet {
		for _, other := range signerSet {
			if id == other {
				continue
			}
			if err := sessions[id].AddPeerCommitment(sessions[other].Round1Commitment()); err != nil {
				return nil, err
			}
		}
	}
	for _, id := range signerSet {
		if err := sessions[id].FinalizeRound1(); err != nil {
			return nil, err
		}
	}

	partials := make([]*signing.PartialSignature, 0, len(signerSet))
	for _, id := range signerSet {
		ps, err := sessions[id].Round2Sign()
		if err != nil {
			return nil, err
		}
		partials = append(partials, ps)
	}

	return sessions[signerSet[0]].Aggregate(partials)
}
