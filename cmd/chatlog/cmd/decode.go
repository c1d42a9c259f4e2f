package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/chatlog/pkg/codec"
	"github.com/ssargent/chatlog/pkg/logger"
	"github.com/ssargent/chatlog/pkg/pipeline"
	"github.com/ssargent/chatlog/pkg/store"
)

// decodeOptions controls how a chunk is decoded and printed
type decodeOptions struct {
	Format        string // table or json
	EntryType     int    // -1 for all types
	Workers       int
	MaxRecordSize int
}

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <chunk-file>",
	Short: "Decode a chunk file and print its entries",
	Long: `Decode every record of a chunk file and print the resulting entries.

Records that cannot be framed are reported and skipped.

Examples:
  chatlog decode ./logs/0001.chunk
  chatlog decode ./logs/0001.chunk --format json --type 0x0A`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		opts, err := decodeFlags(cmd)
		if err != nil {
			return err
		}
		if opts.Workers == 0 {
			opts.Workers = cfg.Workers
		}
		opts.MaxRecordSize = cfg.MaxRecordSize

		stats, err := decodeChunk(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		logger.Get().Info().
			Int("records", stats.Records).
			Int("decoded", stats.Decoded).
			Int("failed", stats.Failed).
			Msg("chunk decoded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringP("format", "f", "table", "Output format (table, json)")
	decodeCmd.Flags().String("type", "", "Only print entries of this type (decimal or 0x hex)")
	decodeCmd.Flags().IntP("workers", "w", 0, "Decode workers (default from config, 0 = one per CPU)")
}

func decodeFlags(cmd *cobra.Command) (decodeOptions, error) {
	format, _ := cmd.Flags().GetString("format")
	typeFlag, _ := cmd.Flags().GetString("type")
	workers, _ := cmd.Flags().GetInt("workers")

	entryType, err := parseEntryType(typeFlag)
	if err != nil {
		return decodeOptions{}, err
	}
	if format != "table" && format != "json" {
		return decodeOptions{}, fmt.Errorf("unknown format %q", format)
	}
	return decodeOptions{Format: format, EntryType: entryType, Workers: workers}, nil
}

// parseEntryType parses an entry type filter; empty means no filter
func parseEntryType(v string) (int, error) {
	if v == "" {
		return -1, nil
	}
	t, err := strconv.ParseUint(v, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid entry type %q", v)
	}
	return int(t), nil
}

// decodeChunk decodes the chunk at path and prints entries to out in order
func decodeChunk(ctx context.Context, path string, opts decodeOptions, out io.Writer) (pipeline.Stats, error) {
	reader, err := store.NewChunkReader(store.ChunkReaderConfig{
		FilePath:      path,
		MaxRecordSize: opts.MaxRecordSize,
	})
	if err != nil {
		return pipeline.Stats{}, fmt.Errorf("failed to open chunk: %w", err)
	}
	defer reader.Close()

	printer := newEntryPrinter(opts.Format, out)
	defer printer.Flush()

	log := logger.Named("decode")
	p := pipeline.New(pipeline.Config{Workers: opts.Workers, Logger: log})
	return p.Run(ctx, reader, func(r pipeline.Result) error {
		if !r.OK {
			log.Warn().Int("index", r.Index).AnErr("cause", r.Err).Msg("record skipped")
			return nil
		}
		if opts.EntryType >= 0 && int(r.Entry.EntryType) != opts.EntryType {
			return nil
		}
		return printer.Print(r.Index, "", r.Entry)
	})
}

// entryPrinter writes entries as an aligned table or as JSON lines
type entryPrinter struct {
	format string
	tw     *tabwriter.Writer
	enc    *json.Encoder
	header bool
}

type jsonEntry struct {
	Index int       `json:"index"`
	ID    string    `json:"id,omitempty"`
	Time  time.Time `json:"time"`
	Text  string    `json:"text"`
	codec.Entry
}

func newEntryPrinter(format string, out io.Writer) *entryPrinter {
	if format == "json" {
		return &entryPrinter{format: format, enc: json.NewEncoder(out)}
	}
	return &entryPrinter{format: format, tw: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
}

func (p *entryPrinter) Print(index int, id string, entry codec.Entry) error {
	if p.format == "json" {
		return p.enc.Encode(jsonEntry{
			Index: index,
			ID:    id,
			Time:  entry.Time(),
			Text:  entry.Message.DisplayText(),
			Entry: entry,
		})
	}

	if !p.header {
		fmt.Fprintln(p.tw, "#\tTIME\tTYPE\tSENDER\tMESSAGE")
		p.header = true
	}
	label := strconv.Itoa(index)
	if id != "" {
		label = id
	}
	_, err := fmt.Fprintf(p.tw, "%s\t%s\t0x%02X\t%s\t%s\n",
		label,
		entry.Time().Format(time.RFC3339),
		entry.EntryType,
		senderText(entry.Sender),
		oneLine(entry.Message.DisplayText()),
	)
	return err
}

func (p *entryPrinter) Flush() {
	if p.tw != nil {
		p.tw.Flush()
	}
}

func senderText(s *codec.Segment) string {
	if s == nil {
		return "-"
	}
	if s.Kind == codec.KindName && s.RealName != s.DisplayName {
		return fmt.Sprintf("%s (%s)", s.DisplayName, s.RealName)
	}
	return s.DisplayText()
}

// oneLine keeps table rows on a single line
func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
}
