/*
Copyright © 2020 hit.zhangjie@gmail.com

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
package cmd

import (
	"github.com/spf13/cobra"
)

// mapsCmd represents the maps command
var mapsCmd = &cobra.Command{
	Use:   "maps <pid>",
	Short: "show the stack and heap of a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProcess(procFS(), args[0])
		if err != nil {
			return err
		}
		p.describe(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mapsCmd)
}
