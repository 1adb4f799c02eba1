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
	"crypto/rand"
	"errors"
	"testing"

	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
)

// fixture builds a trusted-dealer t-of-n key set for testing the signing
// engine in isolation from the DKG engine: PK = secret*G, and shares are
// literal polynomial evaluations of a fixed polynomial with constant term
// `secret`, so Lagrange interpolation of any t shares recovers `secret`.
type fixture struct {
	threshold int
	groupKey  *group.Point
	shares    map[uint16]*group.Scalar
	verShares map[uint16]*group.Point
}

func newFixture(t *testing.T, secret uint64, coeffRest []uint64, n, threshold int) *fixture {
	t.Helper()
	coeffs := append([]uint64{secret}, coeffRest...)
	scalars := make([]*group.Scalar, len(coeffs))
	for i, c := range coeffs {
		scalars[i] = group.ScalarFromUint64(c)
	}
	eval := func(x uint64) *group.Scalar {
		acc := group.NewScalar()
		xs := group.ScalarFromUint64(x)
		for i := len(scalars) - 1; i >= 0; i-- {
			acc.Mul(acc, xs)
			acc.Add(acc, scalars[i])
		}
		return acc
	}

	shares := make(map[uint16]*group.Scalar, n)
	verShares := make(map[uint16]*group.Point, n)
	for id := uint16(1); int(id) <= n; id++ {
		s := eval(uint64(id))
		shares[id] = s
		verShares[id] = group.NewPoint().ScalarBaseMult(s)
	}

	return &fixture{
		threshold: threshold,
		groupKey:  group.NewPoint().ScalarBaseMult(group.ScalarFromUint64(secret)),
		shares:    shares,
		verShares: verShares,
	}
}

func signWithSet(t *testing.T, f *fixture, signers []uint16, message []byte) *Signature {
	t.Helper()
	sessions := make(map[uint16]*Session, len(signers))
	for _, id := range signers {
		s, err := NewSession(rand.Reader, id, signers, f.threshold, message, f.shares[id], f.groupKey, f.verShares)
		if err != nil {
			t.Fatalf("participant %d: %v", id, err)
		}
		sessions[id] = s
	}
	for _, id := range signers {
		for _, other := range signers {
			if id == other {
				continue
			}
			if err := sessions[id].AddPeerCommitment(sessions[other].Round1Commitment()); err != nil {
				t.Fatalf("%d<-%d: %v", id, other, err)
			}
		}
	}
	partials := make([]*PartialSignature, 0, len(signers))
	for _, id := range signers {
		if err := sessions[id].FinalizeRound1(); err != nil {
			t.Fatalf("finalize round1 %d: %v", id, err)
		}
	}
	for _, id := range signers {
		ps, err := sessions[id].Round2Sign()
		if err != nil {
			t.Fatalf("round2 sign %d: %v", id, err)
		}
		partials = append(partials, ps)
	}

	coordinator := sessions[signers[0]]
	sig, err := coordinator.Aggregate(partials)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	return sig
}

// TestSigningHappyPath reproduces scenario (a): PK = 20*G from (t=2,n=3),
// signers {1,2} on "hello" verifies under PK and fails under 21*G.
func TestSigningHappyPath(t *testing.T) {
	f := newFixture(t, 20, []uint64{1}, 3, 2)
	sig := signWithSet(t, f, []uint16{1, 2}, []byte("hello"))

	if !Verify([]byte("hello"), sig, f.groupKey) {
		t.Fatal("signature must verify under PK")
	}
	wrongPK := group.NewPoint().ScalarBaseMult(group.ScalarFromUint64(21))
	if Verify([]byte("hello"), sig, wrongPK) {
		t.Fatal("signature must not verify under a different PK")
	}
}

func TestSigningThresholdBoundaries(t *testing.T) {
	t.Run("t=1 trivial threshold", func(t *testing.T) {
		f := newFixture(t, 5, nil, 3, 1)
		sig := signWithSet(t, f, []uint16{2}, []byte("m"))
		if !Verify([]byte("m"), sig, f.groupKey) {
			t.Fatal("signature must verify")
		}
	})
	t.Run("t=n unanimous", func(t *testing.T) {
		f := newFixture(t, 9, []uint64{2, 3}, 3, 3)
		sig := signWithSet(t, f, []uint16{1, 2, 3}, []byte("m"))
		if !Verify([]byte("m"), sig, f.groupKey) {
			t.Fatal("signature must verify")
		}
	})
}

func TestSigningRejectsDuplicateSigner(t *testing.T) {
	f := newFixture(t, 20, []uint64{1}, 3, 2)
	_, err := NewSession(rand.Reader, 1, []uint16{1, 1, 2}, 2, []byte("m"), f.shares[1], f.groupKey, f.verShares)
	if err != ErrDuplicateSigner {
		t.Errorf("expected ErrDuplicateSigner, got %v", err)
	}
}

func TestSigningRejectsUndersizedSignerSet(t *testing.T) {
	f := newFixture(t, 20, []uint64{1}, 3, 2)
	_, err := NewSession(rand.Reader, 1, []uint16{1}, 2, []byte("m"), f.shares[1], f.groupKey, f.verShares)
	if err != ErrInsufficientSigners {
		t.Errorf("expected ErrInsufficientSigners, got %v", err)
	}
}

// TestSigningTamperedPartial reproduces scenario (d): participant 1
// broadcasts z1+1; the aggregator must reject with VerificationFailed
// naming participant 1.
func TestSigningTamperedPartial(t *testing.T) {
	f := newFixture(t, 20, []uint64{1}, 3, 2)
	signers := []uint16{1, 2}
	message := []byte("hello")

	sessions := make(map[uint16]*Session, 2)
	for _, id := range signers {
		s, err := NewSession(rand.Reader, id, signers, f.threshold, message, f.shares[id], f.groupKey, f.verShares)
		if err != nil {
			t.Fatal(err)
		}
		sessions[id] = s
	}
	for _, id := range signers {
		for _, other := range signers {
			if id != other {
				sessions[id].AddPeerCommitment(sessions[other].Round1Commitment())
			}
		}
	}
	for _, id := range signers {
		if err := sessions[id].FinalizeRound1(); err != nil {
			t.Fatal(err)
		}
	}

	ps1, err := sessions[1].Round2Sign()
	if err != nil {
		t.Fatal(err)
	}
	ps1.Z = group.NewScalar().Add(ps1.Z, group.ScalarFromUint64(1))
	ps2, err := sessions[2].Round2Sign()
	if err != nil {
		t.Fatal(err)
	}

	_, err = sessions[1].Aggregate([]*PartialSignature{ps1, ps2})
	var pErr *PartialVerificationError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PartialVerificationError, got %v", err)
	}
	if pErr.ParticipantID != 1 {
		t.Errorf("expected attribution to participant 1, got %d", pErr.ParticipantID)
	}
	if sessions[1].State() != StateAborted {
		t.Error("session must abort on tampered partial")
	}
}

func TestNonceZeroizedAfterRound2(t *testing.T) {
	f := newFixture(t, 20, []uint64{1}, 3, 2)
	signers := []uint16{1, 2}
	s, err := NewSession(rand.Reader, 1, signers, 2, []byte("m"), f.shares[1], f.groupKey, f.verShares)
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewSession(rand.Reader, 2, signers, 2, []byte("m"), f.shares[2], f.groupKey, f.verShares)
	if err != nil {
		t.Fatal(err)
	}
	s.AddPeerCommitment(other.Round1Commitment())
	other.AddPeerCommitment(s.Round1Commitment())
	if err := s.FinalizeRound1(); err != nil {
		t.Fatal(err)
	}
	dBefore := append([]byte(nil), s.d.Bytes()...)
	if _, err := s.Round2Sign(); err != nil {
		t.Fatal(err)
	}
	if string(dBefore) == string(s.d.Bytes()) {
		t.Error("nonce d must be zeroized after Round2Sign")
	}
}
