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

package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artificialos/kernel/pkg/app"
	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/process"
)

func TestNewBuildsIndependentKernels(t *testing.T) {
	cfg := kernel.DefaultConfig()
	a := app.New(cfg, nil)
	b := app.New(cfg, nil)

	pid, err := a.Process.Create(process.CreateRequest{Name: "only-in-a", SandboxLevel: process.Standard})
	require.NoError(t, err)

	assert.True(t, a.Process.Exists(pid))
	assert.False(t, b.Process.Exists(pid), "kernels must not share process state")
}

func TestCollectMemoryReclaimsTerminatedProcessAllocations(t *testing.T) {
	cfg := kernel.DefaultConfig()
	k := app.New(cfg, nil)

	pid, err := k.Process.Create(process.CreateRequest{Name: "p", SandboxLevel: process.Standard})
	require.NoError(t, err)

	addr, err := k.Memory.Allocate(4096, uint32(pid))
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), k.Memory.ProcessMemory(uint32(pid)))

	require.NoError(t, k.Process.Terminate(pid))

	freed := k.CollectMemory()
	assert.GreaterOrEqual(t, freed, uint64(4096))
	assert.Equal(t, uint64(0), k.Memory.ProcessMemory(uint32(pid)))
	_ = addr
}
