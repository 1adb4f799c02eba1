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

// Package dkg implements Pedersen verifiable secret sharing and the
// threshold distributed key generation ceremony built on top of it.
package dkg

import (
	"errors"
	"fmt"
)

// Validation constants bounding ceremony parameters.
const (
	// MinThreshold is the minimum allowed threshold value. A threshold of
	// 1 provides no threshold security.
	MinThreshold = 1

	// MinParticipants is the minimum allowed number of participants.
	MinParticipants = 1

	// MaxParticipants bounds memory allocation driven by untrusted n.
	MaxParticipants = 65535
)

// Sentinel errors for VSS and polynomial operations.
var (
	ErrInvalidThreshold      = errors.New("dkg: invalid threshold")
	ErrInvalidParticipants   = errors.New("dkg: invalid participant count")
	ErrInvalidParticipantID  = errors.New("dkg: invalid participant id")
	ErrDuplicateParticipant  = errors.New("dkg: duplicate participant id in set")
	ErrInvalidCommitmentLen  = errors.New("dkg: invalid commitment vector length")
	ErrIdentityInCommitment  = errors.New("dkg: identity element in commitment")
	ErrMismatchedThreshold   = errors.New("dkg: mismatched threshold between commitments")
	ErrInvalidEncoding       = errors.New("dkg: invalid encoding")
	ErrRngFailure            = errors.New("dkg: rng failure")
	ErrCeremonyAlreadyDone   = errors.New("dkg: ceremony already finalized or aborted")
	ErrCeremonyAborted       = errors.New("dkg: ceremony previously aborted")
	ErrNotAllDealingsPresent = errors.New("dkg: not all dealings present")
	ErrProtocolState         = errors.New("dkg: operation invalid in current ceremony state")
)

// VerificationFailedError reports a Pedersen share that failed the
// commitment-evaluation identity, attributed to the dealer that produced
// it. It carries the offending participant id so the ceremony can be
// aborted with attribution per the core error taxonomy.
type VerificationFailedError struct {
	// ParticipantID is the id of the participant whose dealt share failed
	// verification.
	ParticipantID uint16
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("dkg: verification failed for participant %d", e.ParticipantID)
}

// Is allows errors.Is(err, ErrVerificationFailed) to match any instance
// regardless of which participant is attributed.
func (e *VerificationFailedError) Is(target error) bool {
	return target == ErrVerificationFailed
}

// ErrVerificationFailed is the sentinel matched by VerificationFailedError.Is,
// so callers that don't need attribution can use errors.Is directly.
var ErrVerificationFailed = errors.New("dkg: verification failed")

// NewVerificationFailedError constructs a VerificationFailedError for the
// given dealer/signer id.
func NewVerificationFailedError(participantID uint16) *VerificationFailedError {
	return &VerificationFailedError{ParticipantID: participantID}
}
