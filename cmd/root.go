package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskvault/taskvault/cmd/tasks"
	"github.com/taskvault/taskvault/cmd/util"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "taskvault",
		Short: "embedded task entity store",
		Long: fmt.Sprintf(`taskvault (v%s)

An embedded storage engine for task entities with secondary
indexes, write-back snapshot persistence, and query caching.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of taskvault",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("taskvault v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(tasks.TaskCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
