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

// Command kerneld runs the kernel's gRPC-facing process.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/artificialos/kernel/cmd/kerneld/cmd"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&cmd.Serve{}, "")
	subcommands.Register(&cmd.Version{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
