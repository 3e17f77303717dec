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
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitzhangjie/memhack/pkg/logflags"
	"github.com/hitzhangjie/memhack/pkg/target"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memhack",
	Short: "scan and edit the stack or heap of a running process",
	Long: `memhack finds a machine word in the stack or heap of a running process,
narrows the matches as the value changes, and overwrites the last one.

Reading another process's memory needs ptrace permission over it, usually
root or CAP_SYS_PTRACE.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logflags.Setup(viper.GetBool("log"), viper.GetString("log-output"), viper.GetString("log-dest"))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.memhack.yaml)")
	flags.String("procfs", string(target.DefaultProcFS), "procfs mount point")
	flags.Bool("color", true, "use ANSI colors and screen clearing when stdout is a terminal")
	flags.Int("max-rows", 0, "rows available to the dashboard, 0 means terminal height")
	flags.Bool("log", false, "enable logging")
	flags.String("log-output", "", "comma separated list of components that should produce logs: tracer,scan,session")
	flags.String("log-dest", "", "write logs to the specified file, stderr if empty")

	for _, name := range []string{"procfs", "color", "max-rows", "log", "log-output", "log-dest"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".memhack" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".memhack")
	}

	viper.SetEnvPrefix("memhack")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "read config %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
	}
}

func procFS() target.ProcFS {
	return target.ProcFS(viper.GetString("procfs"))
}
