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

package ipc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artificialos/kernel/pkg/ipc"
	"github.com/artificialos/kernel/pkg/kernel"
)

func TestPipePermissionsAndCapacity(t *testing.T) {
	p := ipc.NewPipe(1, 10, 20, 4)

	_, err := p.Write(99, []byte("x"))
	require.Error(t, err)

	n, err := p.Write(20, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 4, n) // capacity 4, partial write

	out, err := p.Read(10, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("he"), out)

	require.NoError(t, p.Close(20))
	_, err = p.Write(20, []byte("z"))
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrPipeClosed, kerr.Kind)

	// Draining continues after close.
	out, err = p.Read(10, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("ll"), out)

	out, err = p.Read(10, 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSharedMemoryAttachmentAndBounds(t *testing.T) {
	s := ipc.NewSharedMemory(1, 5, 16)

	_, err := s.Read(6, 0, 1)
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrNotAttached, kerr.Kind)

	require.NoError(t, s.Attach(6, true))
	err = s.Write(6, 0, []byte("x"))
	require.Error(t, err)

	require.NoError(t, s.Attach(7, false))
	require.NoError(t, s.Write(7, 0, []byte("hi")))

	out, err := s.Read(6, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), out)

	err = s.Write(7, 15, []byte("xx"))
	require.Error(t, err)
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrInvalidArgument, kerr.Kind)
}

func TestFIFOQueueOrderAndFull(t *testing.T) {
	q := ipc.NewQueue(1, 1, ipc.FIFO, 2)
	require.NoError(t, q.Send(1, []byte("a"), 0))
	require.NoError(t, q.Send(1, []byte("b"), 0))
	err := q.Send(1, []byte("c"), 0)
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrQueueFull, kerr.Kind)

	msg, ok, err := q.Receive(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), msg.Data)

	msg, ok, err = q.Receive(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), msg.Data)

	_, ok, err = q.Receive(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPriorityQueueOrdersByPriorityThenSequence(t *testing.T) {
	q := ipc.NewQueue(1, 1, ipc.Priority, 0)
	require.NoError(t, q.Send(1, []byte("low"), 1))
	require.NoError(t, q.Send(1, []byte("high-first"), 5))
	require.NoError(t, q.Send(1, []byte("high-second"), 5))

	msg, _, err := q.Receive(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("high-first"), msg.Data)

	msg, _, err = q.Receive(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("high-second"), msg.Data)

	msg, _, err = q.Receive(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("low"), msg.Data)
}

func TestPubSubQueueFansOutToEachSubscriber(t *testing.T) {
	q := ipc.NewQueue(1, 1, ipc.PubSub, 0)
	require.NoError(t, q.Subscribe(2))
	require.NoError(t, q.Subscribe(3))

	require.NoError(t, q.Send(1, []byte("hello"), 0))

	msg2, ok, err := q.Receive(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), msg2.Data)

	msg3, ok, err := q.Receive(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), msg3.Data)

	require.NoError(t, q.Unsubscribe(2))
	require.NoError(t, q.Send(1, []byte("late"), 0))
	_, ok, err = q.Receive(2)
	require.Error(t, err)
}

func TestManagerDestroySurfacesResourceGone(t *testing.T) {
	m := ipc.NewManager(nil)
	p := m.CreatePipe(1, 2, 0)
	m.DestroyPipe(p.ID)

	_, err := p.Write(2, []byte("x"))
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrResourceGone, kerr.Kind)

	_, err = m.Pipe(p.ID)
	require.Error(t, err)
}

func TestManagerShmDestroyRequiresOwner(t *testing.T) {
	m := ipc.NewManager(nil)
	s := m.CreateShm(1, 16)
	err := m.DestroyShm(2, s.ID)
	require.Error(t, err)

	require.NoError(t, m.DestroyShm(1, s.ID))
}
