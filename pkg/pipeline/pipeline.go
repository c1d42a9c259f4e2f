// Package pipeline decodes record sources concurrently while delivering
// entries in source order.
package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/ssargent/chatlog/pkg/codec"
	"github.com/ssargent/chatlog/pkg/logger"
)

// Source supplies raw records by index. *store.ChunkReader satisfies it.
type Source interface {
	Len() int
	ReadAt(i int) (codec.RawRecord, error)
}

// Records is an in-memory Source.
type Records []codec.RawRecord

func (r Records) Len() int { return len(r) }

func (r Records) ReadAt(i int) (codec.RawRecord, error) { return r[i], nil }

// Result is the outcome for one record.
type Result struct {
	Index int
	Entry codec.Entry
	OK    bool  // record framed and decoded
	Err   error // reading the record failed
}

// Stats summarises a run.
type Stats struct {
	Records  int                `json:"records"`
	Decoded  int                `json:"decoded"`
	Failed   int                `json:"failed"`
	Segments map[codec.Kind]int `json:"segments"`
}

func (s *Stats) add(r Result) {
	s.Records++
	if !r.OK {
		s.Failed++
		return
	}
	s.Decoded++
	if s.Segments == nil {
		s.Segments = make(map[codec.Kind]int)
	}
	for _, seg := range r.Entry.Message {
		s.Segments[seg.Kind]++
	}
}

// Config controls concurrency.
type Config struct {
	Workers int // 0 means GOMAXPROCS
	Window  int // results buffered ahead of the consumer; 0 means 4 per worker, never fewer than Workers
	Logger  *logger.Logger
}

// Pipeline decodes sources with a fixed worker count.
type Pipeline struct {
	workers int
	window  int
	log     *logger.Logger
}

// New creates a pipeline.
func New(config Config) *Pipeline {
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	window := config.Window
	switch {
	case window <= 0:
		window = workers * 4
	case window < workers:
		window = workers
	}
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{workers: workers, window: window, log: log}
}

// Run decodes every record in src and calls fn with each result in index
// order. It stops at the first error from fn or when ctx is done.
func (p *Pipeline) Run(ctx context.Context, src Source, fn func(Result) error) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := src.Len()
	jobs := make(chan int)
	results := make(chan Result, p.workers)
	// sem bounds how far workers may run ahead of the consumer
	sem := make(chan struct{}, p.window)

	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := p.decode(src, i)
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		stats   Stats
		pending = make(map[int]Result)
		next    int
		runErr  error
	)

	for res := range results {
		if runErr != nil {
			continue
		}
		pending[res.Index] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			<-sem
			next++

			stats.add(r)
			if err := fn(r); err != nil {
				runErr = err
				cancel()
				break
			}
		}
	}

	if runErr != nil {
		return stats, runErr
	}
	if next < n {
		return stats, ctx.Err()
	}
	return stats, nil
}

func (p *Pipeline) decode(src Source, i int) Result {
	res := Result{Index: i}

	raw, err := src.ReadAt(i)
	if err != nil {
		p.log.Warn().Err(err).Int("record", i).Msg("read failed")
		res.Err = err
		return res
	}

	res.Entry, res.OK = codec.Decode(raw)
	if !res.OK {
		p.log.Debug().Int("record", i).Int("bytes", len(raw)).Msg("record did not frame")
	}
	return res
}

// DecodeAll runs the pipeline and collects every result.
func (p *Pipeline) DecodeAll(ctx context.Context, src Source) ([]Result, Stats, error) {
	out := make([]Result, 0, src.Len())
	stats, err := p.Run(ctx, src, func(r Result) error {
		out = append(out, r)
		return nil
	})
	return out, stats, err
}
