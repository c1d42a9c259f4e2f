package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/chatlog/pkg/store"
)

// packCmd represents the pack command
var packCmd = &cobra.Command{
	Use:   "pack <out-file> <hex-record>...",
	Short: "Write a chunk file from hex-encoded records",
	Long: `Write a chunk file containing the given records, each passed as hex.
Whitespace inside a record is ignored. Useful for building test fixtures.

Example:
  chatlog pack ./fixture.chunk "00f15365 0a 000000 1f 626f62 3a 6869"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		first, _ := cmd.Flags().GetUint32("first-index")

		n, err := packRecords(args[0], args[1:], first)
		if err != nil {
			return err
		}
		cmd.Printf("Wrote %d record(s) to %s\n", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().Uint32("first-index", 0, "Index of the first record, stored in the chunk header")
}

// packRecords writes hex-encoded records to a new chunk file at path
func packRecords(path string, records []string, first uint32) (int, error) {
	w, err := store.NewChunkWriter(store.ChunkWriterConfig{FilePath: path, FirstIndex: first})
	if err != nil {
		return 0, err
	}

	for i, rec := range records {
		raw, err := hex.DecodeString(strings.Join(strings.Fields(rec), ""))
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := w.Append(raw); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}

	if err := w.Close(); err != nil {
		return 0, err
	}
	return len(records), nil
}
