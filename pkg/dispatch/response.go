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

import "github.com/artificialos/kernel/pkg/kernel"

// ResultKind is which of the three Response shapes a dispatch produced
// (spec §4.5 step 5).
type ResultKind int

const (
	Success ResultKind = iota
	ErrorResult
	PermissionDenied
)

// Response is exactly one of Success{data}, Error{code, message},
// PermissionDenied{reason} (spec §4.5). Only the fields matching Kind are
// meaningful; the others are zero.
type Response struct {
	Kind ResultKind

	// Success.
	Data []byte

	// Error.
	Code    string
	Message string

	// PermissionDenied.
	Reason string
}

func successResponse(data []byte) Response {
	return Response{Kind: Success, Data: data}
}

func errorResponse(err error) Response {
	if kerr, ok := err.(*kernel.Error); ok {
		return Response{Kind: ErrorResult, Code: kerr.Kind.String(), Message: kerr.Error()}
	}
	return Response{Kind: ErrorResult, Code: kernel.ErrInternal.String(), Message: err.Error()}
}

func permissionDeniedResponse(reason string) Response {
	return Response{Kind: PermissionDenied, Reason: reason}
}
