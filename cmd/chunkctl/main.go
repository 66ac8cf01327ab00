package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uplo-tech/chunkvault/build"
)

// exit codes, inspired by sysexits.h
const (
	exitCodeGeneral = 1
	exitCodeUsage   = 64
)

var (
	// flagBaseDir overrides the root directory projects live under.
	flagBaseDir string
)

// die prints its arguments to stderr and exits with the default error code.
func die(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(exitCodeGeneral)
}

// wrap adapts a (args []string) error command function into the signature
// cobra.Command.Run expects, printing and exiting on error the way uploc's
// own command wrapper does.
func wrap(fn func(args []string) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := fn(args); err != nil {
			die(err)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "chunkctl",
	Short: "chunkctl is a command-line interface to a chunkvault project",
	Long:  "chunkctl is a command-line interface to a chunkvault project.",
	Run:   wrap(versioncmd),
}

func versioncmd(args []string) error {
	version := build.Version
	if build.ReleaseTag != "" {
		version += "-" + build.ReleaseTag
	}
	switch build.Release {
	case build.Dev:
		fmt.Println("chunkctl v" + version + "-dev")
	case build.Testing:
		fmt.Println("chunkctl v" + version + "-testing")
	case build.Standard:
		fmt.Println("chunkctl v" + version)
	default:
		fmt.Println("chunkctl v" + version + "-???")
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagBaseDir, "base-dir", build.BaseDir(), "root directory projects live under (overrides CHUNKVAULT_BASE_DIR)")

	rootCmd.AddCommand(attachCmd, stageCmd, fetchCmd, syncCmd, healthCmd,
		checkpointCmd, listProjectsCmd)
	checkpointCmd.AddCommand(checkpointCreateCmd, checkpointListCmd, checkpointRestoreCmd)

	if err := rootCmd.Execute(); err != nil {
		die(err)
	}
}
