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
	"testing"

	"github.com/ErosolarAI/new-RoT-by-FROST/pkg/group"
)

func TestPolynomialEvalHorner(t *testing.T) {
	// f(x) = 7 + 3x; f(1) = 10, f(2) = 13.
	p := fixedPolynomial(7, 3)
	if got := p.Eval(group.ScalarFromUint64(1)); !got.Equal(group.ScalarFromUint64(10)) {
		t.Errorf("f(1): expected 10, got mismatch")
	}
	if got := p.Eval(group.ScalarFromUint64(2)); !got.Equal(group.ScalarFromUint64(13)) {
		t.Errorf("f(2): expected 13, got mismatch")
	}
}

func TestPolynomialEvalZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic evaluating at x=0")
		}
	}()
	fixedPolynomial(7, 3).Eval(group.NewScalar())
}

func TestZeroConstantPolynomial(t *testing.T) {
	p, err := NewZeroConstantPolynomial(rand.Reader, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !p.ConstantTerm().IsZero() {
		t.Error("expected zero constant term")
	}
}

func TestNewRandomPolynomialRejectsSmallThreshold(t *testing.T) {
	if _, err := NewRandomPolynomial(rand.Reader, 0); err != ErrInvalidThreshold {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}
}

func TestParticipantScalarRejectsZero(t *testing.T) {
	if _, err := ParticipantScalar(0); err != ErrInvalidParticipantID {
		t.Errorf("expected ErrInvalidParticipantID, got %v", err)
	}
}
