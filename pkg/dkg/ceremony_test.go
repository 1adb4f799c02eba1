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
	"crypto/rand"
	"errors"
	"testing"

	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
)

// fixedPolynomial builds a polynomial from small integer coefficients,
// matching the literal fixtures in the test vectors.
func fixedPolynomial(coeffs ...uint64) *Polynomial {
	scalars := make([]*group.Scalar, len(coeffs))
	for i, c := range coeffs {
		scalars[i] = group.ScalarFromUint64(c)
	}
	return NewPolynomialFromCoefficients(scalars)
}

// runHonestCeremony drives a full honest t-of-n ceremony among participants
// 1..n given each participant's fixed f polynomial, returning every
// participant's Result.
func runHonestCeremony(t *testing.T, n, threshold int, fPolys map[uint16]*Polynomial) map[uint16]*Result {
	t.Helper()

	ceremonies := make(map[uint16]*Ceremony, n)
	commitments := make(map[uint16]*Commitment, n)
	for id := uint16(1); int(id) <= n; id++ {
		g, err := NewRandomPolynomial(rand.Reader, threshold)
		if err != nil {
			t.Fatal(err)
		}
		c, err := newCeremonyFromPolynomials(id, threshold, n, fPolys[id], g)
		if err != nil {
			t.Fatalf("participant %d: %v", id, err)
		}
		ceremonies[id] = c
		commitments[id] = c.Commitment()
	}

	// Round 2: every ordered pair deals and verifies.
	for dealerID, dealer := range ceremonies {
		for recipientID, recipient := range ceremonies {
			if dealerID == recipientID {
				continue
			}
			fShare, gShare, err := dealer.DealShare(recipientID)
			if err != nil {
				t.Fatalf("deal %d->%d: %v", dealerID, recipientID, err)
			}
			if err := recipient.ReceiveDealing(dealerID, commitments[dealerID], fShare, gShare); err != nil {
				t.Fatalf("verify %d->%d: %v", dealerID, recipientID, err)
			}
		}
	}

	results := make(map[uint16]*Result, n)
	for id, c := range ceremonies {
		r, err := c.Finalize(commitments)
		if err != nil {
			t.Fatalf("finalize %d: %v", id, err)
		}
		results[id] = r
	}
	return results
}

// TestDKGFixedVectorGroupKey reproduces scenario (a): f1=(7,3), f2=(4,11),
// f3=(9,5) yields PK = 20*G, and every participant derives the identical
// group public key.
func TestDKGFixedVectorGroupKey(t *testing.T) {
	fPolys := map[uint16]*Polynomial{
		1: fixedPolynomial(7, 3),
		2: fixedPolynomial(4, 11),
		3: fixedPolynomial(9, 5),
	}
	results := runHonestCeremony(t, 3, 2, fPolys)

	expectedPK := group.NewPoint().ScalarBaseMult(group.ScalarFromUint64(20))
	wrongPK := group.NewPoint().ScalarBaseMult(group.ScalarFromUint64(21))

	for id, r := range results {
		if !r.GroupPublicKey.Equal(expectedPK) {
			t.Errorf("participant %d: PK mismatch", id)
		}
		if r.GroupPublicKey.Equal(wrongPK) {
			t.Errorf("participant %d: PK must not equal 21*G", id)
		}
	}
}

// TestDKGVerificationSharesMatchSecret checks invariant: Yj = sj*G for
// every participant's own derived share.
func TestDKGVerificationSharesMatchSecret(t *testing.T) {
	fPolys := map[uint16]*Polynomial{
		1: fixedPolynomial(7, 3),
		2: fixedPolynomial(4, 11),
		3: fixedPolynomial(9, 5),
	}
	results := runHonestCeremony(t, 3, 2, fPolys)

	for id, r := range results {
		expected := group.NewPoint().ScalarBaseMult(r.Share.Value)
		got := r.VerificationShares[id].Point
		if !got.Equal(expected) {
			t.Errorf("participant %d: verification share does not match sj*G", id)
		}
	}
}

// TestDKGAccusation reproduces scenario (b): participant 2 deals a
// corrupted share to participant 1, which must abort with
// VerificationFailed naming participant 2.
func TestDKGAccusation(t *testing.T) {
	threshold, n := 2, 3
	f1 := fixedPolynomial(7, 3)
	f2 := fixedPolynomial(4, 11)
	f3 := fixedPolynomial(9, 5)

	g1, _ := NewRandomPolynomial(rand.Reader, threshold)
	g2, _ := NewRandomPolynomial(rand.Reader, threshold)
	g3, _ := NewRandomPolynomial(rand.Reader, threshold)

	p1, err := newCeremonyFromPolynomials(1, threshold, n, f1, g1)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := newCeremonyFromPolynomials(2, threshold, n, f2, g2)
	if err != nil {
		t.Fatal(err)
	}
	_, err = newCeremonyFromPolynomials(3, threshold, n, f3, g3)
	if err != nil {
		t.Fatal(err)
	}

	fShare, gShare, err := p2.DealShare(1)
	if err != nil {
		t.Fatal(err)
	}
	corrupted := group.NewScalar().Add(fShare, group.ScalarFromUint64(1))

	err = p1.ReceiveDealing(2, p2.Commitment(), corrupted, gShare)
	var vErr *VerificationFailedError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected VerificationFailedError, got %v", err)
	}
	if vErr.ParticipantID != 2 {
		t.Errorf("expected attribution to participant 2, got %d", vErr.ParticipantID)
	}
	if !errors.Is(err, ErrVerificationFailed) {
		t.Error("errors.Is(err, ErrVerificationFailed) must hold")
	}

	if _, err := p1.Finalize(nil); err != ErrProtocolState {
		t.Errorf("aborted ceremony must reject Finalize, got %v", err)
	}
}

func TestDKGBoundaryThresholdEqualsN(t *testing.T) {
	fPolys := map[uint16]*Polynomial{
		1: fixedPolynomial(1, 2, 3),
		2: fixedPolynomial(4, 5, 6),
		3: fixedPolynomial(7, 8, 9),
	}
	// t = n = 3, the unanimous boundary case.
	results := runHonestCeremony(t, 3, 3, fPolys)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
}

func TestDKGBoundaryThresholdOne(t *testing.T) {
	fPolys := map[uint16]*Polynomial{
		1: fixedPolynomial(7),
		2: fixedPolynomial(4),
		3: fixedPolynomial(9),
	}
	// t = 1, the trivial-threshold boundary case.
	results := runHonestCeremony(t, 3, 1, fPolys)
	expectedPK := group.NewPoint().ScalarBaseMult(group.ScalarFromUint64(20))
	for id, r := range results {
		if !r.GroupPublicKey.Equal(expectedPK) {
			t.Errorf("participant %d: PK mismatch at t=1", id)
		}
	}
}

func TestDKGRejectsInvalidParameters(t *testing.T) {
	t.Run("threshold greater than n", func(t *testing.T) {
		if _, err := NewCeremony(rand.Reader, 1, 3, 2); err != ErrInvalidThreshold {
			t.Errorf("expected ErrInvalidThreshold, got %v", err)
		}
	})
	t.Run("zero participant id", func(t *testing.T) {
		if _, err := NewCeremony(rand.Reader, 0, 2, 3); err != ErrInvalidParticipantID {
			t.Errorf("expected ErrInvalidParticipantID, got %v", err)
		}
	})
	t.Run("participant id beyond n", func(t *testing.T) {
		if _, err := NewCeremony(rand.Reader, 5, 2, 3); err != ErrInvalidParticipantID {
			t.Errorf("expected ErrInvalidParticipantID, got %v", err)
		}
	})
}

func TestCommitmentRejectsIdentityConstantTerm(t *testing.T) {
	threshold := 2
	f := fixedPolynomial(0, 1)
	g := fixedPolynomial(0, 1)
	c, err := Commit(f, g)
	if err != nil {
		t.Fatal(err)
	}
	if !c.ConstantTermIsIdentity() {
		t.Fatal("expected identity Feldman constant term for a0=0")
	}
	encoded := c.ToBytes()
	if _, err := CommitmentFromBytes(encoded, threshold, false); err != ErrIdentityInCommitment {
		t.Errorf("expected ErrIdentityInCommitment, got %v", err)
	}
	if _, err := CommitmentFromBytes(encoded, threshold, true); err != nil {
		t.Errorf("allowZeroConstant must accept a zero Feldman constant term: %v", err)
	}
}

func TestDealShareRejectsWrongState(t *testing.T) {
	c, err := NewCeremony(rand.Reader, 1, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	c.Abort()
	if _, _, err := c.DealShare(2); err != ErrProtocolState {
		t.Errorf("expected ErrProtocolState after abort, got %v", err)
	}
}
