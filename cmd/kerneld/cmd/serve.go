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

package cmd

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/artificialos/kernel/pkg/app"
	"github.com/artificialos/kernel/pkg/collector"
	"github.com/artificialos/kernel/pkg/grpcapi"
	"github.com/artificialos/kernel/pkg/kernel"
)

// Serve implements subcommands.Command for the "serve" command: it loads
// configuration, takes a single-instance lock, wires an app.Kernel and
// serves it over gRPC until interrupted.
type Serve struct {
	configPath string
	lockPath   string
	bindAddr   string
}

func (*Serve) Name() string     { return "serve" }
func (*Serve) Synopsis() string { return "run the kernel's gRPC server" }
func (*Serve) Usage() string {
	return "serve [-config path] [-lock path] [-bind addr]\n"
}

func (s *Serve) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.configPath, "config", "", "path to a TOML config file (defaults are used if empty)")
	f.StringVar(&s.lockPath, "lock", "/tmp/kerneld.lock", "single-instance lock file path")
	f.StringVar(&s.bindAddr, "bind", "", "override the configured bind address")
}

func (s *Serve) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	log := logrus.StandardLogger()

	cfg, err := kernel.LoadConfig(s.configPath)
	if err != nil {
		log.WithError(err).Error("loading configuration")
		return subcommands.ExitFailure
	}
	if s.bindAddr != "" {
		cfg.BindAddr = s.bindAddr
	}

	// A second kerneld on the same machine would silently race the first
	// over the same in-memory kernel's external effects (bind address,
	// lock file); gofrs/flock enforces single-instance the same way the
	// teacher's shim guards its bundle directory.
	fl := flock.New(s.lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		log.WithError(err).Error("acquiring single-instance lock")
		return subcommands.ExitFailure
	}
	if !locked {
		log.WithField("lock", s.lockPath).Error("another kerneld instance holds the lock")
		return subcommands.ExitFailure
	}
	defer fl.Unlock()

	zlog, err := zap.NewProduction()
	if err != nil {
		log.WithError(err).Error("building telemetry logger")
		return subcommands.ExitFailure
	}
	defer zlog.Sync()
	sink := collector.NewZapSink(zlog, 0)

	k := app.New(cfg, sink)
	gs := grpcapi.NewGRPCServer(k.Dispatcher)

	lis, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		log.WithError(err).WithField("addr", cfg.BindAddr).Error("binding listener")
		return subcommands.ExitFailure
	}
	log.WithField("addr", cfg.BindAddr).Info("kerneld listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// The serve goroutine and the shutdown waiter are one unit of work:
	// errgroup.Wait returns gs.Serve's error (nil after a clean
	// GracefulStop) once both have finished.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gs.Serve(lis) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-sigCh:
			log.Info("shutdown signal received")
		}
		gs.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("gRPC server exited")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
