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
	"sort"
	"strings"
	"sync"

	"github.com/artificialos/kernel/pkg/kernel"
)

// vfs is an in-memory file store. Spec §6 declares "Persistent state:
// None" for the kernel as a whole, so file I/O syscalls operate on a
// process-local namespace that vanishes with the kernel rather than a
// real filesystem; Standard-sandbox processes are scoped to their own
// "/pid/<pid>/" prefix (spec §6 "file I/O under scoped path prefix").
type vfs struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func newVFS() *vfs {
	return &vfs{files: make(map[string][]byte)}
}

func scopedPrefix(pid kernel.PID) string {
	return "/pid/" + itoa(uint32(pid)) + "/"
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

// withinScope reports whether path is inside pid's scoped prefix; a
// Privileged caller may pass any absolute path instead.
func withinScope(pid kernel.PID, path string, privileged bool) bool {
	if privileged {
		return strings.HasPrefix(path, "/")
	}
	return strings.HasPrefix(path, scopedPrefix(pid))
}

func (v *vfs) create(path string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.files[path]; exists {
		return kernel.NewError(kernel.ErrInvalidArgument, "file %q already exists", path)
	}
	v.files[path] = append([]byte(nil), data...)
	return nil
}

func (v *vfs) write(path string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.files[path]; !exists {
		return kernel.NewError(kernel.ErrInvalidArgument, "file %q does not exist", path)
	}
	v.files[path] = append([]byte(nil), data...)
	return nil
}

func (v *vfs) read(path string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	data, exists := v.files[path]
	if !exists {
		return nil, kernel.NewError(kernel.ErrInvalidArgument, "file %q does not exist", path)
	}
	return append([]byte(nil), data...), nil
}

func (v *vfs) delete(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.files[path]; !exists {
		return kernel.NewError(kernel.ErrInvalidArgument, "file %q does not exist", path)
	}
	delete(v.files, path)
	return nil
}

func (v *vfs) exists(path string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.files[path]
	return ok
}

// list returns every path under prefix, sorted.
func (v *vfs) list(prefix string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []string
	for p := range v.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
