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

// Package wire encodes and decodes the protocol's length-prefixed,
// type-tagged messages: DKG and rotation commitments and shares, signing
// commitments and partial signatures, and the final aggregated
// signature.
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/dkg"
	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/signing"
	"github.com/google/uuid"
)

// Version is the sole wire format version this package understands.
const Version byte = 0x01

// Type tags, one byte, followed by the version byte in every message.
const (
	TypeDKGCommitment      byte = 1
	TypeDKGShare           byte = 2
	TypeSigningCommitment  byte = 3
	TypeSigningPartial     byte = 4
	TypeRotationCommitment byte = 5
	TypeRotationShare      byte = 6
)

var (
	// ErrShortMessage reports a message too short to contain its fixed
	// header fields.
	ErrShortMessage = errors.New("wire: message too short")
	// ErrUnsupportedVersion reports a version byte other than Version.
	ErrUnsupportedVersion = errors.New("wire: unsupported version")
	// ErrWrongType reports a type tag that doesn't match the decoder
	// called.
	ErrWrongType = errors.New("wire: unexpected message type")
)

// EncodeDKGCommitment builds a DKG commitment message: type=1 || ver ||
// sender_id(2B) || t(2B) || Feldman0..Feldman_{t-1} || Blinding0..Blinding_{t-1}.
// The body carries 2t points rather than spec shorthand's t, since each
// logical commitment entry is a (Feldman, Blinding) pair.
func EncodeDKGCommitment(senderID uint16, commitment *dkg.Commitment) []byte {
	t := commitment.Threshold()
	out := make([]byte, 0, 1+1+2+2+2*t*group.ElementSize)
	out = append(out, TypeDKGCommitment, Version)
	out = appendUint16(out, senderID)
	out = appendUint16(out, uint16(t))
	out = append(out, commitment.ToBytes()...)
	return out
}

// DecodeDKGCommitment parses a message built by EncodeDKGCommitment.
func DecodeDKGCommitment(b []byte) (senderID uint16, commitment *dkg.Commitment, err error) {
	if len(b) < 6 {
		return 0, nil, ErrShortMessage
	}
	if b[0] != TypeDKGCommitment {
		return 0, nil, ErrWrongType
	}
	if b[1] != Version {
		return 0, nil, ErrUnsupportedVersion
	}
	senderID = binary.LittleEndian.Uint16(b[2:4])
	t := int(binary.LittleEndian.Uint16(b[4:6]))
	commitment, err = dkg.CommitmentFromBytes(b[6:], t, false)
	if err != nil {
		return 0, nil, err
	}
	return senderID, commitment, nil
}

// EncodeDKGShare builds a point-to-point DKG share message: type=2 || ver
// || sender_id || recipient_id || f_share(32B) || g_share(32B) || t(2B).
func EncodeDKGShare(senderID, recipientID uint16, fShare, gShare *group.Scalar, threshold int) []byte {
	out := make([]byte, 0, 1+1+2+2+2*group.ScalarSize+2)
	out = append(out, TypeDKGShare, Version)
	out = appendUint16(out, senderID)
	out = appendUint16(out, recipientID)
	out = append(out, fShare.Bytes()...)
	out = append(out, gShare.Bytes()...)
	out = appendUint16(out, uint16(threshold))
	return out
}

// DecodeDKGShare parses a message built by EncodeDKGShare.
func DecodeDKGShare(b []byte) (senderID, recipientID uint16, fShare, gShare *group.Scalar, threshold int, err error) {
	const fixed = 1 + 1 + 2 + 2 + 2*group.ScalarSize + 2
	if len(b) != fixed {
		return 0, 0, nil, nil, 0, ErrShortMessage
	}
	if b[0] != TypeDKGShare {
		return 0, 0, nil, nil, 0, ErrWrongType
	}
	if b[1] != Version {
		return 0, 0, nil, nil, 0, ErrUnsupportedVersion
	}
	senderID = binary.LittleEndian.Uint16(b[2:4])
	recipientID = binary.LittleEndian.Uint16(b[4:6])
	offset := 6
	fShare, err = group.DecodeScalar(b[offset : offset+group.ScalarSize])
	if err != nil {
		return 0, 0, nil, nil, 0, err
	}
	offset += group.ScalarSize
	gShare, err = group.DecodeScalar(b[offset : offset+group.ScalarSize])
	if err != nil {
		return 0, 0, nil, nil, 0, err
	}
	offset += group.ScalarSize
	threshold = int(binary.LittleEndian.Uint16(b[offset : offset+2]))
	return senderID, recipientID, fShare, gShare, threshold, nil
}

// EncodeSigningCommitment builds a round-1 signing message: type=3 ||
// ver || session_id(16B) || signer_id(2B) || D(32B) || E(32B).
func EncodeSigningCommitment(sessionID uuid.UUID, c *signing.Commitment) []byte {
	out := make([]byte, 0, 1+1+16+2+2*group.ElementSize)
	out = append(out, TypeSigningCommitment, Version)
	out = append(out, sessionID[:]...)
	out = appendUint16(out, c.ID)
	out = append(out, c.D.Bytes()...)
	out = append(out, c.E.Bytes()...)
	return out
}

// DecodeSigningCommitment parses a message built by EncodeSigningCommitment.
func DecodeSigningCommitment(b []byte) (sessionID uuid.UUID, c *signing.Commitment, err error) {
	const fixed = 1 + 1 + 16 + 2 + 2*group.ElementSize
	if len(b) != fixed {
		return uuid.UUID{}, nil, ErrShortMessage
	}
	if b[0] != TypeSigningCommitment {
		return uuid.UUID{}, nil, ErrWrongType
	}
	if b[1] != Version {
		return uuid.UUID{}, nil, ErrUnsupportedVersion
	}
	copy(sessionID[:], b[2:18])
	id := binary.LittleEndian.Uint16(b[18:20])
	offset := 20
	D, err := group.DecodePoint(b[offset:offset+group.ElementSize], false)
	if err != nil {
		return uuid.UUID{}, nil, err
	}
	offset += group.ElementSize
	E, err := group.DecodePoint(b[offset:offset+group.ElementSize], false)
	if err != nil {
		return uuid.UUID{}, nil, err
	}
	return sessionID, &signing.Commitment{ID: id, D: D, E: E}, nil
}

// EncodeSigningPartial builds a round-2 signing message: type=4 || ver ||
// session_id(16B) || signer_id(2B) || z(32B).
func EncodeSigningPartial(sessionID uuid.UUID, ps *signing.PartialSignature) []byte {
	out := make([]byte, 0, 1+1+16+2+group.ScalarSize)
	out = append(out, TypeSigningPartial, Version)
	out = append(out, sessionID[:]...)
	out = appendUint16(out, ps.ID)
	out = append(out, ps.Z.Bytes()...)
	return out
}

// DecodeSigningPartial parses a message built by EncodeSigningPartial.
func DecodeSigningPartial(b []byte) (sessionID uuid.UUID, ps *signing.PartialSignature, err error) {
	const fixed = 1 + 1 + 16 + 2 + group.ScalarSize
	if len(b) != fixed {
		return uuid.UUID{}, nil, ErrShortMessage
	}
	if b[0] != TypeSigningPartial {
		return uuid.UUID{}, nil, ErrWrongType
	}
	if b[1] != Version {
		return uuid.UUID{}, nil, ErrUnsupportedVersion
	}
	copy(sessionID[:], b[2:18])
	id := binary.LittleEndian.Uint16(b[18:20])
	z, err := group.DecodeScalar(b[20 : 20+group.ScalarSize])
	if err != nil {
		return uuid.UUID{}, nil, err
	}
	return sessionID, &signing.PartialSignature{ID: id, Z: z}, nil
}

// EncodeRotationCommitment mirrors EncodeDKGCommitment under type=5.
func EncodeRotationCommitment(senderID uint16, commitment *dkg.Commitment) []byte {
	out := EncodeDKGCommitment(senderID, commitment)
	out[0] = TypeRotationCommitment
	return out
}

// DecodeRotationCommitment mirrors DecodeDKGCommitment under type=5, and
// permits a zero Feldman constant term as a rotation delta commitment
// legitimately has.
func DecodeRotationCommitment(b []byte) (senderID uint16, commitment *dkg.Commitment, err error) {
	if len(b) < 6 {
		return 0, nil, ErrShortMessage
	}
	if b[0] != TypeRotationCommitment {
		return 0, nil, ErrWrongType
	}
	if b[1] != Version {
		return 0, nil, ErrUnsupportedVersion
	}
	senderID = binary.LittleEndian.Uint16(b[2:4])
	t := int(binary.LittleEndian.Uint16(b[4:6]))
	commitment, err = dkg.CommitmentFromBytes(b[6:], t, true)
	if err != nil {
		return 0, nil, err
	}
	return senderID, commitment, nil
}

// EncodeRotationShare mirrors EncodeDKGShare under type=6.
func EncodeRotationShare(senderID, recipientID uint16, deltaShare, blindShare *group.Scalar, threshold int) []byte {
	out := EncodeDKGShare(senderID, recipientID, deltaShare, blindShare, threshold)
	out[0] = TypeRotationShare
	return out
}

// DecodeRotationShare mirrors DecodeDKGShare under type=6.
func DecodeRotationShare(b []byte) (senderID, recipientID uint16, deltaShare, blindShare *group.Scalar, threshold int, err error) {
	const fixed = 1 + 1 + 2 + 2 + 2*group.ScalarSize + 2
	if len(b) != fixed {
		return 0, 0, nil, nil, 0, ErrShortMessage
	}
	if b[0] != TypeRotationShare {
		return 0, 0, nil, nil, 0, ErrWrongType
	}
	if b[1] != Version {
		return 0, 0, nil, nil, 0, ErrUnsupportedVersion
	}
	senderID = binary.LittleEndian.Uint16(b[2:4])
	recipientID = binary.LittleEndian.Uint16(b[4:6])
	offset := 6
	deltaShare, err = group.DecodeScalar(b[offset : offset+group.ScalarSize])
	if err != nil {
		return 0, 0, nil, nil, 0, err
	}
	offset += group.ScalarSize
	blindShare, err = group.DecodeScalar(b[offset : offset+group.ScalarSize])
	if err != nil {
		return 0, 0, nil, nil, 0, err
	}
	offset += group.ScalarSize
	threshold = int(binary.LittleEndian.Uint16(b[offset : offset+2]))
	return senderID, recipientID, deltaShare, blindShare, threshold, nil
}

// EncodeSignature builds the 64-byte signature format: R(32) || z(32).
func EncodeSignature(sig *signing.Signature) []byte {
	out := make([]byte, 0, 2*group.ElementSize)
	out = append(out, sig.R.Bytes()...)
	out = append(out, sig.Z.Bytes()...)
	return out
}

// DecodeSignature parses the 64-byte signature format.
func DecodeSignature(b []byte) (*signing.Signature, error) {
	if len(b) != 2*group.ElementSize {
		return nil, ErrShortMessage
	}
	R, err := group.DecodePoint(b[:group.ElementSize], false)
	if err != nil {
		return nil, err
	}
	z, err := group.DecodeScalar(b[group.ElementSize:])
	if err != nil {
		return nil, err
	}
	return &signing.Signature{R: R, Z: z}, nil
}

func appendUint16(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}
