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
	"bytes"
	"crypto/rand"
	"testing"
)

func TestScalarArithmetic(t *testing.T) {
	t.Run("add and sub are inverse", func(t *testing.T) {
		a, err := RandomScalar(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		b, err := RandomScalar(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		sum := NewScalar().Add(a, b)
		back := NewScalar().Sub(sum, b)
		if !back.Equal(a) {
			t.Error("a + b - b != a")
		}
	})

	t.Run("invert", func(t *testing.T) {
		a, err := RandomScalar(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		inv, err := NewScalar().Invert(a)
		if err != nil {
			t.Fatal(err)
		}
		one := NewScalar().Mul(a, inv)
		if !one.Equal(ScalarFromUint64(1)) {
			t.Error("a * a^-1 != 1")
		}
	})

	t.Run("invert of zero fails", func(t *testing.T) {
		z := NewScalar()
		if _, err := NewScalar().Invert(z); err != ErrZeroScalar {
			t.Errorf("expected ErrZeroScalar, got %v", err)
		}
	})

	t.Run("small integers roundtrip through encoding", func(t *testing.T) {
		for _, n := range []uint64{0, 1, 2, 20, 65535} {
			s := ScalarFromUint64(n)
			decoded, err := DecodeScalar(s.Bytes())
			if err != nil {
				t.Fatalf("n=%d: %v", n, err)
			}
			if !decoded.Equal(s) {
				t.Errorf("n=%d: roundtrip mismatch", n)
			}
		}
	})
}

func TestDecodeScalarRejectsOutOfRange(t *testing.T) {
	// The group order q in little-endian; values >= q must not decode.
	qMinusOne := []byte{
		0xec, 0xd3, 0xf5, 0x5c, 0x1a, 0x63, 0x12, 0x58,
		0xd6, 0x9c, 0xf7, 0xa2, 0xde, 0xf9, 0xde, 0x14,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x10,
	}
	if _, err := DecodeScalar(qMinusOne); err != nil {
		t.Errorf("q-1 must decode, got %v", err)
	}

	q := make([]byte, 32)
	copy(q, qMinusOne)
	q[0]++
	if _, err := DecodeScalar(q); err == nil {
		t.Error("q must be rejected")
	}
}

func TestPointArithmetic(t *testing.T) {
	t.Run("base point is not identity", func(t *testing.T) {
		if BasePoint().IsIdentity() {
			t.Error("G must not be identity")
		}
	})

	t.Run("scalar mult by zero yields identity", func(t *testing.T) {
		p := NewPoint().ScalarBaseMult(NewScalar())
		if !p.IsIdentity() {
			t.Error("0*G must be identity")
		}
	})

	t.Run("decode rejects identity when disallowed", func(t *testing.T) {
		id := NewPoint().Bytes()
		if _, err := DecodePoint(id, false); err != ErrIdentityElement {
			t.Errorf("expected ErrIdentityElement, got %v", err)
		}
		if _, err := DecodePoint(id, true); err != nil {
			t.Errorf("identity should be allowed: %v", err)
		}
	})

	t.Run("add/sub roundtrip", func(t *testing.T) {
		a := NewPoint().ScalarBaseMult(ScalarFromUint64(7))
		b := NewPoint().ScalarBaseMult(ScalarFromUint64(11))
		sum := NewPoint().Add(a, b)
		back := NewPoint().Sub(sum, b)
		if !back.Equal(a) {
			t.Error("a + b - b != a")
		}
	})
}

func TestPedersenHIndependentOfG(t *testing.T) {
	h1 := PedersenH()
	h2 := PedersenH()
	if !h1.Equal(h2) {
		t.Error("PedersenH must be deterministic across calls")
	}
	if h1.Equal(BasePoint()) {
		t.Error("H must differ from G")
	}
	if !bytes.Equal(h1.Bytes(), h2.Bytes()) {
		t.Error("encodings must match")
	}
}

func TestZeroizeScalar(t *testing.T) {
	sentinel := ScalarFromUint64(0xdeadbeef)
	before := append([]byte(nil), sentinel.Bytes()...)
	sentinel.Zeroize()
	if bytes.Equal(before, sentinel.Bytes()) {
		t.Error("scalar bytes unchanged after Zeroize")
	}
}
