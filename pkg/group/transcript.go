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

package group

import (
	"crypto/sha512"
	"encoding/binary"
	"hash"
)

// labelPrefix is the fixed domain-separation prefix shared by every
// transcript role.
const labelPrefix = "FROST-RISTRETTO255-SHA512-v1-"

// Transcript is a domain-separated Fiat-Shamir sponge over SHA-512. A
// Transcript is constructed for exactly one role (rho, challenge, kdf,
// rotation-proof, token) and that role is absorbed as the very first
// input, so two transcripts built for different roles can never collide
// regardless of what is absorbed afterward.
type Transcript struct {
	h        hash.Hash
	squeezed bool
}

// NewTranscript starts a transcript for the given role suffix, e.g. "rho"
// or "challenge". The role is mixed into the hash state immediately.
func NewTranscript(role string) *Transcript {
	t := &Transcript{h: sha512.New()}
	t.writeFramed([]byte(labelPrefix + role))
	return t
}

// AppendMessage absorbs a labeled byte string.
func (t *Transcript) AppendMessage(label string, msg []byte) {
	t.writeFramed([]byte(label))
	t.writeFramed(msg)
}

// AppendPoint absorbs a labeled group element.
func (t *Transcript) AppendPoint(label string, p *Point) {
	t.AppendMessage(label, p.Bytes())
}

// AppendScalar absorbs a labeled scalar.
func (t *Transcript) AppendScalar(label string, s *Scalar) {
	t.AppendMessage(label, s.Bytes())
}

// AppendUint16 absorbs a labeled 16-bit integer, used for participant ids
// and thresholds.
func (t *Transcript) AppendUint16(label string, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	t.AppendMessage(label, b[:])
}

// AppendUint32 absorbs a labeled 32-bit integer, used for rotation epochs.
func (t *Transcript) AppendUint32(label string, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	t.AppendMessage(label, b[:])
}

// SqueezeScalar finalizes the transcript into a single scalar, reducing
// the full 512-bit SHA-512 digest mod q. A transcript is single-use: it
// may be squeezed only once.
func (t *Transcript) SqueezeScalar() *Scalar {
	if t.squeezed {
		panic("group: transcript squeezed twice")
	}
	t.squeezed = true
	digest := t.h.Sum(nil)
	return &Scalar{s: newRistrettoScalarFromWide(digest)}
}

func (t *Transcript) writeFramed(b []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	t.h.Write(lenBuf[:])
	t.h.Write(b)
}
