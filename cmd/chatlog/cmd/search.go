package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <term>...",
	Short: "Search archived entries",
	Long: `Search the archive for entries containing every given term, newest first.
Terms match case-insensitively against message text and sender names.

Examples:
  chatlog search inn
  chatlog search "north gate" --limit 5 --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		a, err := openArchive(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.Search(strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			cmd.Println("No matching entries")
			return nil
		}

		printer := newEntryPrinter(format, cmd.OutOrStdout())
		defer printer.Flush()
		for i, rec := range recs {
			if err := printer.Print(i, rec.ID.String(), rec.Entry); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntP("limit", "n", 20, "Maximum entries to print (0 = all)")
	searchCmd.Flags().StringP("format", "f", "table", "Output format (table, json)")
}
