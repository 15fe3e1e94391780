// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagsCommand returns a hidden diagnostic command that lists every
// flag registered on root and its subcommands, global and local alike.
// It exists so a wrapping script can discover available flags without
// parsing --help text.
func newFlagsCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:    "flags",
		Short:  "List every flag registered on the orchestrator CLI",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("global:")
			root.PersistentFlags().VisitAll(func(f *pflag.Flag) {
				fmt.Printf("  --%-20s %s (default %q)\n", f.Name, f.Usage, f.DefValue)
			})
			var walk func(cmds []*cobra.Command)
			walk = func(cmds []*cobra.Command) {
				for _, sub := range cmds {
					if sub.Hidden {
						continue
					}
					fmt.Printf("%s:\n", strings.TrimPrefix(sub.CommandPath(), root.Name()+" "))
					sub.Flags().VisitAll(func(f *pflag.Flag) {
						if root.PersistentFlags().Lookup(f.Name) != nil {
							return
						}
						fmt.Printf("  --%-20s %s (default %q)\n", f.Name, f.Usage, f.DefValue)
					})
					walk(sub.Commands())
				}
			}
			walk(root.Commands())
			return nil
		},
	}
}
