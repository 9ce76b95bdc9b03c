package tasks

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskvault/taskvault/cmd/util"
	"github.com/taskvault/taskvault/lib/storage"
)

// TaskCommands groups all task subcommands. Every subcommand is a thin
// adapter: it opens the configured store, calls exactly one storage
// operation with an already-validated payload, prints the result as
// JSON, and closes the store again.
var TaskCommands = &cobra.Command{
	Use:   "tasks",
	Short: "Work with the task store",
}

func init() {
	TaskCommands.AddCommand(createCmd)
	TaskCommands.AddCommand(getCmd)
	TaskCommands.AddCommand(updateCmd)
	TaskCommands.AddCommand(deleteCmd)
	TaskCommands.AddCommand(lsCmd)
	TaskCommands.AddCommand(flushCmd)
	TaskCommands.AddCommand(statsCmd)
}

// withStore opens the configured store, runs fn, and always closes the
// store afterwards (Close force-flushes when dirty).
func withStore(cmd *cobra.Command, fn func(st storage.IStorage) error) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	st, err := util.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing store: %v\n", closeErr)
		}
	}()

	return fn(st)
}

// printJSON writes v to stdout as indented JSON
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
