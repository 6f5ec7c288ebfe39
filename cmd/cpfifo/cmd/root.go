// Package cmd provides the command-line interface of cpfifo.
package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCommand creates the cpfifo command with all its subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cpfifo",
		Short: "cpfifo runs GPU command streams through an emulated command FIFO.",
		Long: `cpfifo runs GPU command streams through an emulated command FIFO. ` +
			`Defaults for the flags can be given in the environment or in a .env ` +
			`file in the working directory.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newReplayCommand())

	return rootCmd
}

// Execute loads the .env file, runs the root command and exits.
func Execute() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
	}

	err = NewRootCommand().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// envBool reads a boolean from the environment. Unset or malformed values
// give def.
func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"Ignoring %s=%q, it is not a boolean\n", name, v)
		return def
	}

	return b
}

func envString(name, def string) string {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}

	return v
}
