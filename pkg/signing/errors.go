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

// Package signing implements the two-round FROST threshold signing
// protocol: nonce commitment, binding-factor computation, per-signer
// partial signature, and aggregation into a standard Schnorr signature.
package signing

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolState reports an operation attempted from the wrong
	// state-machine state.
	ErrProtocolState = errors.New("signing: operation invalid in current session state")

	// ErrInsufficientSigners reports fewer than threshold valid
	// participants remaining in the active signer set.
	ErrInsufficientSigners = errors.New("signing: insufficient signers")

	// ErrDuplicateSigner reports a signer id repeated in a signer set.
	ErrDuplicateSigner = errors.New("signing: duplicate signer id in set")

	// ErrUnknownSigner reports a commitment or partial from a signer id
	// outside the session's signer set.
	ErrUnknownSigner = errors.New("signing: signer id not part of this session")

	// ErrMissingCommitment reports round 2 entered before every signer's
	// round-1 commitment was gathered.
	ErrMissingCommitment = errors.New("signing: missing peer commitment")

	// ErrVerificationFailed is the sentinel matched by
	// PartialVerificationError.Is.
	ErrVerificationFailed = errors.New("signing: verification failed")
)

// PartialVerificationError reports that signer ParticipantID's partial
// signature failed the per-signer verification equation.
type PartialVerificationError struct {
	ParticipantID uint16
}

func (e *PartialVerificationError) Error() string {
	return fmt.Sprintf("signing: partial signature verification failed for participant %d", e.ParticipantID)
}

func (e *PartialVerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}
