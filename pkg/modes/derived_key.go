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

// Package modes implements the two mode wrappers built on top of DKG and
// signing: one-shot derived-key provisioning, and a hybrid session-token
// cache for bounded offline operation.
package modes

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/dkg"
	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/signing"
)

var (
	// ErrInsufficientProofSignatures reports fewer than threshold
	// signatures collected for the derivation proof.
	ErrInsufficientProofSignatures = errors.New("modes: insufficient signatures for derivation proof")
	// ErrProofVerificationFailed reports a derivation proof signature that
	// failed to verify under the group public key.
	ErrProofVerificationFailed = errors.New("modes: derivation proof verification failed")
)

// DerivedDeviceKey is a per-device signing key derived once from the
// group secret, together with the proof that t participants attested to
// its derivation.
type DerivedDeviceKey struct {
	DeviceID  []byte
	Version   uint32
	SecretKey *group.Scalar
	PublicKey *group.Point
	Proof     *signing.Signature
}

// Zeroize destructively overwrites the derived secret key.
func (k *DerivedDeviceKey) Zeroize() {
	if k == nil || k.SecretKey == nil {
		return
	}
	k.SecretKey.Zeroize()
}

// deriveScalar computes sk = HKDF-extract-and-expand-style reduction of
// HMAC-SHA512("device-key", s || device_id || version) mod q. This is
// the concrete instantiation of spec's kdf-labeled transcript role,
// chosen over a bare transcript squeeze because the derivation additionally
// needs to be reproducible independent of any FROST session state: any
// holder of the reconstructed group secret can re-derive the same device
// key for the same (device_id, version) pair without replaying the
// ceremony.
func deriveScalar(secret *group.Scalar, deviceID []byte, version uint32) *group.Scalar {
	mac := hmac.New(sha512.New, []byte("FROST-RISTRETTO255-SHA512-v1-device-key"))
	mac.Write(secret.Bytes())
	mac.Write(deviceID)
	var versionBuf [4]byte
	binary.LittleEndian.PutUint32(versionBuf[:], version)
	mac.Write(versionBuf[:])
	digest := mac.Sum(nil)
	return group.DecodeWideScalar(digest)
}

// ReconstructSecret reconstructs the group secret from a set of at least
// threshold long-term shares via Lagrange interpolation at x=0. It exists
// solely for the one-shot derived-key provisioning scope, which is the
// only place in the system permitted to hold the full group secret; it
// must be zeroized immediately after use by the caller.
func ReconstructSecret(shares map[uint16]*dkg.SecretShare) (*group.Scalar, error) {
	ids := make([]uint16, 0, len(shares))
	for id := range shares {
		ids = append(ids, id)
	}
	secret := group.NewScalar()
	for _, i := range ids {
		lambda := lagrangeAtZero(i, ids)
		term := group.NewScalar().Mul(lambda, shares[i].Value)
		secret.Add(secret, term)
	}
	return secret, nil
}

// lagrangeAtZero computes lambda_i = Prod_{j != i} j/(j-i), the Lagrange
// coefficient for interpolating the polynomial's value at x=0 (the
// shared secret) from a set of participant evaluations.
func lagrangeAtZero(i uint16, signerSet []uint16) *group.Scalar {
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
		panic("modes: distinct signer ids must yield an invertible denominator")
	}
	return group.NewScalar().Mul(num, denInv)
}

// DeriveDeviceKeyMessage returns the exact byte string a derivation-proof
// signing session must sign for the given (device_id, pk, version)
// tuple, so callers can drive the t-participant signing session before
// calling DeriveDeviceKey with the result.
func DeriveDeviceKeyMessage(deviceID []byte, pk *group.Point, version uint32) []byte {
	return deviceKeyProofMessage(deviceID, pk, version)
}

// DeriveDeviceKey performs one-shot derived-key provisioning: it takes
// the already-reconstructed group secret (the caller is responsible for
// destroying it immediately after this call returns), derives sk and pk,
// and verifies the aggregated proof signature collected from t
// participants attesting to (device_id, pk, version) under the
// unchanged group public key.
func DeriveDeviceKey(secret *group.Scalar, groupKey *group.Point, deviceID []byte, version uint32, aggregatedProof *signing.Signature) (*DerivedDeviceKey, error) {
	sk := deriveScalar(secret, deviceID, version)
	pk := group.NewPoint().ScalarBaseMult(sk)

	if aggregatedProof == nil {
		return nil, fmt.Errorf("modes: %w", ErrInsufficientProofSignatures)
	}
	descriptor := deviceKeyProofMessage(deviceID, pk, version)
	if !signing.Verify(descriptor, aggregatedProof, groupKey) {
		return nil, ErrProofVerificationFailed
	}

	return &DerivedDeviceKey{
		DeviceID:  append([]byte(nil), deviceID...),
		Version:   version,
		SecretKey: sk,
		PublicKey: pk,
		Proof:     aggregatedProof,
	}, nil
}

// deviceKeyProofMessage is the exact byte string a derivation-proof
// signing session signs: device_id || pk(32B) || version(4B LE).
func deviceKeyProofMessage(deviceID []byte, pk *group.Point, version uint32) []byte {
	out := make([]byte, 0, len(deviceID)+group.ElementSize+4)
	out = append(out, deviceID...)
	out = append(out, pk.Bytes()...)
	var versionBuf [4]byte
	binary.LittleEndian.PutUint32(versionBuf[:], version)
	return append(out, versionBuf[:]...)
}
