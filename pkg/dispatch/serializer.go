// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// simdThreshold is the payload size above which the SIMD-accelerated
// serializer is used (spec §6 "Serialization").
const simdThreshold = 1024

// serialize implements the size-adaptive serializer: payloads over 1KiB
// take the SIMD path; a SIMD failure always falls back to the standard
// encoder rather than failing the syscall (spec §6, §7 "recover locally
// only for serialization fallback").
func serialize(v any, forceSIMD bool) ([]byte, error) {
	estimate, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !forceSIMD && len(estimate) <= simdThreshold {
		return estimate, nil
	}
	if out, err := sonic.Marshal(v); err == nil {
		return out, nil
	}
	return estimate, nil
}

// deserialize mirrors serialize's path selection: SIMD above threshold,
// falling back to the standard decoder on any SIMD error.
func deserialize(data []byte, v any, forceSIMD bool) error {
	if forceSIMD || len(data) > simdThreshold {
		if err := sonic.Unmarshal(data, v); err == nil {
			return nil
		}
	}
	return json.Unmarshal(data, v)
}
