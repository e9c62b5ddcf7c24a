/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/mroda88/trigger/cmd/commands"
	"github.com/mroda88/trigger/pkg/shared/logging"
)

func main() {
	log := logging.NewLogger()
	ctx := logging.WithLogger(signals.SetupSignalHandler(), log)

	root := &cobra.Command{
		Use:   "trigger",
		Short: "Run a stream-processing trigger stage",
	}
	root.AddCommand(commands.NewStartCommand())
	root.AddCommand(commands.NewRunFileCommand())

	if err := root.ExecuteContext(ctx); err != nil {
		log.Errorw("command failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
