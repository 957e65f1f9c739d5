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
	"strings"

	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/process"
)

func (d *Dispatcher) dispatchFile(req Request, caller process.Snapshot) Response {
	privileged := caller.Sandbox == process.Privileged
	if !withinScope(req.PID, req.Path, privileged) {
		return permissionDeniedResponse("path outside scoped prefix for " + caller.Sandbox.String() + " sandbox")
	}

	switch req.Op {
	case OpCreateFile:
		if err := d.vfs.create(req.Path, req.Data); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)
	case OpWriteFile:
		if err := d.vfs.write(req.Path, req.Data); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)
	case OpReadFile:
		data, err := d.vfs.read(req.Path)
		if err != nil {
			return errorResponse(err)
		}
		return successResponse(data)
	case OpDeleteFile:
		if err := d.vfs.delete(req.Path); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)
	case OpFileExists:
		return successResponse(mustSerialize(map[string]any{"exists": d.vfs.exists(req.Path)}))
	case OpListDirectory:
		prefix := req.Path
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		return successResponse(mustSerialize(d.vfs.list(prefix)))
	default:
		return errorResponse(kernel.NewError(kernel.ErrInternal, "dispatchFile called with non-file op %q", req.Op))
	}
}
