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

import "github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"

// SecretShare is a participant's long-term share of the group secret,
// sⱼ = Σᵢ fᵢ(j). It is secret and must be zeroized on drop.
type SecretShare struct {
	ID    uint16
	Value *group.Scalar
}

// Zeroize destructively overwrites the share's scalar value.
func (s *SecretShare) Zeroize() {
	if s == nil || s.Value == nil {
		return
	}
	s.Value.Zeroize()
}

// VerificationShare is the public point Yⱼ = sⱼ·G used to verify partial
// signatures from participant j.
type VerificationShare struct {
	ID    uint16
	Point *group.Point
}

// Result is the output of a finalized DKG ceremony: this participant's
// long-term share, the group public key, and every participant's public
// verification share.
type Result struct {
	Share              *SecretShare
	GroupPublicKey     *group.Point
	VerificationShares map[uint16]*VerificationShare
	Threshold          int
}

// Zeroize destructively overwrites the secret share carried by the
// result. Public fields (PK, verification shares) are left intact since
// they may be freely copied.
func (r *Result) Zeroize() {
	if r == nil {
		return
	}
	r.Share.Zeroize()
}
