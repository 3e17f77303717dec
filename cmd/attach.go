/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
	"errors"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitzhangjie/memhack/cmd/session"
	"github.com/hitzhangjie/memhack/pkg/target"
)

// attachCmd represents the attach command
var attachCmd = &cobra.Command{
	Use:   "attach <pid>",
	Short: "interactively scan and edit a running process",
	Long: `Scan the stack (or heap) of a running process for a value.

Enter a non-negative decimal value to scan the active region, enter the new
value after the target changed it to narrow the matches. Once a single
address is left you are asked for the value to write there.

  c, clear    drop the candidates
  s, stack    scan the stack
  h, heap     scan the heap
  e, exit     quit, so does an empty line`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProcess(procFS(), args[0])
		if err != nil {
			return err
		}

		ops := target.NewPtracer()
		defer ops.Close()
		engine := target.NewEngine(target.NewTracer(p.pid, ops), target.NewMemoryReader())

		line := liner.NewLiner()
		line.SetCtrlCAborts(true)

		stop := session.InstallInterruptHandler()
		s := session.New(session.Config{
			Pid:    p.pid,
			Name:   p.name,
			Stack:  p.stack,
			Heap:   p.heap,
			Engine: engine,
			Input:  history{line},
			Output: os.Stdout,
			Color:  viper.GetBool("color") && isatty.IsTerminal(os.Stdout.Fd()),
			Rows:   dashboardRows(),
		})
		err = s.Run()

		line.Close()
		stop()
		if errors.Is(err, session.ErrInterrupted) {
			session.Abort()
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}

// history records every non-empty line in the liner history.
type history struct {
	*liner.State
}

func (h history) Prompt(prompt string) (string, error) {
	txt, err := h.State.Prompt(prompt)
	if err == nil && strings.TrimSpace(txt) != "" {
		h.AppendHistory(txt)
	}
	return txt, err
}

func dashboardRows() func() int {
	if n := viper.GetInt("max-rows"); n > 0 {
		return func() int { return n }
	}
	return session.TerminalRows(int(os.Stdout.Fd()))
}
