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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/memhack/pkg/target"
)

// pokeCmd represents the poke command
var pokeCmd = &cobra.Command{
	Use:   "poke <pid> <value> <new-value>",
	Short: "replace a value in the stack if it occurs exactly once",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseUint(args[1], 10, strconv.IntSize)
		if err != nil {
			return fmt.Errorf("invalid value %q", args[1])
		}
		newValue, err := target.ParseWord(args[2])
		if err != nil {
			return fmt.Errorf("invalid new value %q", args[2])
		}

		p, err := openProcess(procFS(), args[0])
		if err != nil {
			return err
		}

		ops := target.NewPtracer()
		defer ops.Close()
		engine := target.NewEngine(target.NewTracer(p.pid, ops), target.NewMemoryReader())

		out := cmd.OutOrStdout()
		p.describe(out)
		return pokeStack(out, engine, p.stack, target.Word(value), newValue)
	},
}

func init() {
	rootCmd.AddCommand(pokeCmd)
}

type stackEditor interface {
	Scan(value target.Word, region target.Region) ([]target.Address, error)
	Write(addr target.Address, value target.Word) error
}

// pokeStack scans stack once and writes newValue only when value was found
// at exactly one address.
func pokeStack(w io.Writer, e stackEditor, stack target.Region, value, newValue target.Word) error {
	addrs, err := e.Scan(value, stack)
	if err != nil {
		return err
	}

	switch len(addrs) {
	case 0:
		fmt.Fprintf(w, "\n%d not found in stack\n", value)
	case 1:
		fmt.Fprintf(w, "\none %d found in stack at %s, writing %d\n", value, addrs[0], newValue)
		return e.Write(addrs[0], newValue)
	default:
		strs := make([]string, len(addrs))
		for i, addr := range addrs {
			strs[i] = addr.String()
		}
		fmt.Fprintf(w, "\n%d found %dx in stack at: { %s }\n", value, len(addrs), strings.Join(strs, ", "))
	}
	return nil
}
