package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/chatlog/pkg/archive"
	"github.com/ssargent/chatlog/pkg/codec"
	"github.com/ssargent/chatlog/pkg/logger"
	"github.com/ssargent/chatlog/pkg/pipeline"
	"github.com/ssargent/chatlog/pkg/store"
)

const importBatchSize = 512

// importOptions controls an import run
type importOptions struct {
	Workers       int
	Parallel      int // chunk files imported at once
	MaxRecordSize int
}

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <chunk-file>...",
	Short: "Decode chunk files into the archive",
	Long: `Decode one or more chunk files and store every decodable entry in the
archive, where it becomes searchable.

Examples:
  chatlog import ./logs/*.chunk
  chatlog import ./logs/0001.chunk --data-dir ./data --parallel 4`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		workers, _ := cmd.Flags().GetInt("workers")
		parallel, _ := cmd.Flags().GetInt("parallel")
		if workers == 0 {
			workers = cfg.Workers
		}

		a, err := openArchive(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := importChunks(cmd.Context(), a, args, importOptions{
			Workers:       workers,
			Parallel:      parallel,
			MaxRecordSize: cfg.MaxRecordSize,
		})
		if err != nil {
			return err
		}

		cmd.Printf("Imported %d of %d records from %d chunk(s)\n", stats.Decoded, stats.Records, len(args))
		if stats.Failed > 0 {
			cmd.Printf("Skipped %d undecodable records\n", stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().IntP("workers", "w", 0, "Decode workers per chunk (default from config, 0 = one per CPU)")
	importCmd.Flags().IntP("parallel", "p", 2, "Chunk files imported concurrently")
}

// importChunks decodes every chunk in paths into a and returns combined stats
func importChunks(ctx context.Context, a *archive.Archive, paths []string, opts importOptions) (pipeline.Stats, error) {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}

	var (
		mu    sync.Mutex
		total = pipeline.Stats{Segments: make(map[codec.Kind]int)}
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			stats, err := importChunk(ctx, a, path, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			total.Records += stats.Records
			total.Decoded += stats.Decoded
			total.Failed += stats.Failed
			for k, n := range stats.Segments {
				total.Segments[k] += n
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}

func importChunk(ctx context.Context, a *archive.Archive, path string, opts importOptions) (pipeline.Stats, error) {
	reader, err := store.NewChunkReader(store.ChunkReaderConfig{
		FilePath:      path,
		MaxRecordSize: opts.MaxRecordSize,
	})
	if err != nil {
		return pipeline.Stats{}, fmt.Errorf("failed to open chunk: %w", err)
	}
	defer reader.Close()

	log := logger.Named("import").With().Str("chunk", path).Logger()
	batch := make([]codec.Entry, 0, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := a.PutBatch(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	p := pipeline.New(pipeline.Config{Workers: opts.Workers, Logger: &log})
	stats, err := p.Run(ctx, reader, func(r pipeline.Result) error {
		if !r.OK {
			return nil
		}
		batch = append(batch, r.Entry)
		if len(batch) >= importBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	if err := flush(); err != nil {
		return stats, err
	}

	log.Info().Int("records", stats.Records).Int("decoded", stats.Decoded).Msg("chunk imported")
	return stats, nil
}
