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

// Package grpcapi is the thin gRPC binding onto the C5 dispatcher (spec
// §6). The kernel's own wire schema (§1) is out of scope for this
// module, so CreateProcess/ExecuteSyscall messages are plain Go structs
// carried over a grpc.ForceServerCodec-installed JSON codec rather than
// generated .pb.go stubs — the grpc dependency still does real framing
// and service-dispatch work, just without a protoc step.
package grpcapi

import "encoding/json"

// JSONCodec implements grpc.Codec against plain Go structs. Exported so
// both the server (via grpc.ForceServerCodec) and any in-process client
// (via grpc.ForceCodec) install the identical codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (JSONCodec) Name() string { return "json" }
