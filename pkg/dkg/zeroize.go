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

import "crypto/subtle"

// ZeroBytes destructively overwrites b in place. It routes through
// subtle.ConstantTimeCopy so the compiler cannot recognize this as a
// dead store and elide it, which a plain loop risks once the backing
// slice is provably unread afterward.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	z := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, z)
}

// ZeroSlices overwrites every slice in bs.
func ZeroSlices(bs ...[]byte) {
	for _, b := range bs {
		ZeroBytes(b)
	}
}
