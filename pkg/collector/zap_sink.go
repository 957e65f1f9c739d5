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

package collector

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapSink emits events as structured zap log entries, kept entirely
// separate from the application's logrus logger: this is the telemetry
// stream an external collector ingests, not an operator-facing log.
//
// Emission never blocks the caller: each event is handed to a single
// background worker over a bounded channel, retried with exponential
// backoff (spec §4.1 "failures are logged to the collector but do not
// stop subsequent releases"). A full channel drops the event rather than
// applying backpressure to kernel work.
type ZapSink struct {
	logger *zap.Logger
	queue  chan Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewZapSink starts a ZapSink backed by logger, with a bounded event
// queue of the given depth (0 defaults to 1024).
func NewZapSink(logger *zap.Logger, depth int) *ZapSink {
	if depth <= 0 {
		depth = 1024
	}
	s := &ZapSink{
		logger: logger,
		queue:  make(chan Event, depth),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Emit implements Sink. Non-blocking: drops the event if the queue is
// full rather than delaying the caller.
func (s *ZapSink) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case s.queue <- e:
	default:
		s.logger.Warn("collector queue full, event dropped", zap.String("type", e.Type))
	}
}

// Close closes the queue at once and waits until every queued event has
// been delivered. Emit must not be called after Close.
func (s *ZapSink) Close() {
	s.closeOnce.Do(func() { close(s.queue) })
	<-s.done
}

func (s *ZapSink) run() {
	defer close(s.done)
	for e := range s.queue {
		s.deliver(e)
	}
}

func (s *ZapSink) deliver(e Event) {
	entry := zapcore.Entry{
		Level:   zap.InfoLevel,
		Time:    e.At,
		Message: e.Type,
	}
	fields := make([]zapcore.Field, 0, len(e.Fields)+1)
	fields = append(fields, zap.Uint32("pid", e.PID))
	for k, v := range e.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	// Core.Write can fail (e.g. a flaky downstream writer); retry a
	// handful of times with backoff rather than dropping the event on
	// the first hiccup, but never let a stuck writer block the kernel.
	op := func() error { return s.logger.Core().Write(entry, fields) }
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Second
	if err := backoff.Retry(op, b); err != nil {
		s.logger.Warn("event delivery gave up", zap.Error(err), zap.String("type", e.Type))
	}
}
