// Package archive persists decoded chat entries in a pebble database.
//
// Entries live under e/<ksuid>, where the ksuid carries the entry timestamp,
// so a key scan walks the archive in chronological order. Values are
// zstd-compressed JSON. Search postings from package index are written in
// the same batch as the entry they point at.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/chatlog/pkg/codec"
	"github.com/ssargent/chatlog/pkg/index"
	"github.com/ssargent/chatlog/pkg/logger"
)

const entryPrefix = "e/"

var (
	// ErrNotFound is returned when an entry id is not in the archive.
	ErrNotFound = errors.New("archive: entry not found")

	// ErrEmptyQuery is returned when a search query has no indexable terms.
	ErrEmptyQuery = errors.New("archive: empty query")

	// ErrClosed is returned by operations on a closed archive.
	ErrClosed = errors.New("archive: closed")

	// ksuidEpoch is the earliest instant a ksuid can encode.
	ksuidEpoch = time.Unix(1400000000, 0)
)

// Options configures an archive.
type Options struct {
	// Compression is a zstd level name: fastest, default, better or best.
	Compression string
	// Sync forces every write to be synced to disk.
	Sync bool
	Logger *logger.Logger
}

// Record is an archived entry with its id.
type Record struct {
	ID ksuid.KSUID `json:"id"`
	codec.Entry
}

// Stats summarises archive contents.
type Stats struct {
	Entries  int    `json:"entries"`
	Postings int    `json:"postings"`
	DiskSize uint64 `json:"disk_size"`
}

// Archive is a pebble-backed entry store. It is safe for concurrent use.
type Archive struct {
	// mu guards db against Close; operations hold it for reading.
	mu    sync.RWMutex
	db    *pebble.DB
	enc   *zstd.Encoder
	dec   *zstd.Decoder
	write *pebble.WriteOptions
	log   *logger.Logger
}

// Open opens or creates an archive in dir.
func Open(dir string, opts Options) (*Archive, error) {
	level := zstd.SpeedDefault
	if opts.Compression != "" {
		ok, l := zstd.EncoderLevelFromString(opts.Compression)
		if !ok {
			return nil, fmt.Errorf("archive: unknown compression level %q", opts.Compression)
		}
		level = l
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("archive: create encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("archive: create decoder: %w", err)
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		enc.Close()
		dec.Close()
		return nil, fmt.Errorf("archive: open %s: %w", dir, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	write := pebble.NoSync
	if opts.Sync {
		write = pebble.Sync
	}

	log.Debug().Str("dir", dir).Str("compression", level.String()).Msg("archive opened")

	return &Archive{db: db, enc: enc, dec: dec, write: write, log: log}, nil
}

// Put stores one entry and returns its new id.
func (a *Archive) Put(entry codec.Entry) (ksuid.KSUID, error) {
	ids, err := a.PutBatch([]codec.Entry{entry})
	if err != nil {
		return ksuid.Nil, err
	}
	return ids[0], nil
}

// PutBatch stores entries atomically and returns their ids in input order.
func (a *Archive) PutBatch(entries []codec.Entry) ([]ksuid.KSUID, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, ErrClosed
	}

	batch := a.db.NewBatch()
	defer batch.Close()

	ids := make([]ksuid.KSUID, 0, len(entries))
	postings := 0
	for _, entry := range entries {
		id, err := newID(entry.Time())
		if err != nil {
			return nil, fmt.Errorf("archive: mint id: %w", err)
		}

		value, err := a.encode(entry)
		if err != nil {
			return nil, err
		}
		if err := batch.Set(entryKey(id), value, nil); err != nil {
			return nil, fmt.Errorf("archive: stage entry: %w", err)
		}

		for _, tok := range index.Tokens(entry) {
			if err := batch.Set(index.PostingKey(tok, id), nil, nil); err != nil {
				return nil, fmt.Errorf("archive: stage posting: %w", err)
			}
			postings++
		}
		ids = append(ids, id)
	}

	if err := batch.Commit(a.write); err != nil {
		return nil, fmt.Errorf("archive: commit: %w", err)
	}

	a.log.Debug().Int("entries", len(ids)).Int("postings", postings).Msg("batch stored")
	return ids, nil
}

// Get returns the entry stored under id.
func (a *Archive) Get(id ksuid.KSUID) (Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return Record{}, ErrClosed
	}
	return a.get(id)
}

func (a *Archive) get(id ksuid.KSUID) (Record, error) {
	value, closer, err := a.db.Get(entryKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("archive: get %s: %w", id, err)
	}
	defer closer.Close()

	entry, err := a.decode(value)
	if err != nil {
		return Record{}, fmt.Errorf("archive: entry %s: %w", id, err)
	}
	return Record{ID: id, Entry: entry}, nil
}

// Delete removes an entry and its postings. Deleting a missing id returns
// ErrNotFound.
func (a *Archive) Delete(id ksuid.KSUID) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return ErrClosed
	}

	rec, err := a.get(id)
	if err != nil {
		return err
	}

	batch := a.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete(entryKey(id), nil); err != nil {
		return fmt.Errorf("archive: stage delete: %w", err)
	}
	for _, tok := range index.Tokens(rec.Entry) {
		if err := batch.Delete(index.PostingKey(tok, id), nil); err != nil {
			return fmt.Errorf("archive: stage delete: %w", err)
		}
	}
	return batch.Commit(a.write)
}

// Range calls fn for every entry whose timestamp lies in [from, to], oldest
// first. A zero to means no upper bound. Returning an error from fn stops the
// scan and Range returns that error. fn must not call back into the archive.
func (a *Archive) Range(from, to time.Time, fn func(Record) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return ErrClosed
	}

	opts := &pebble.IterOptions{
		LowerBound: entryKey(boundID(from, false)),
		UpperBound: index.PrefixEnd([]byte(entryPrefix)),
	}
	if !to.IsZero() {
		opts.UpperBound = index.PrefixEnd(entryKey(boundID(to, true)))
	}

	iter, err := a.db.NewIter(opts)
	if err != nil {
		return fmt.Errorf("archive: iterate: %w", err)
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		id, err := ksuid.FromBytes(iter.Key()[len(entryPrefix):])
		if err != nil {
			return fmt.Errorf("archive: bad entry key %x: %w", iter.Key(), err)
		}
		entry, err := a.decode(iter.Value())
		if err != nil {
			return fmt.Errorf("archive: entry %s: %w", id, err)
		}

		ts := entry.Time()
		if ts.Before(from) || (!to.IsZero() && ts.After(to)) {
			continue
		}
		if err := fn(Record{ID: id, Entry: entry}); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Search returns up to limit entries containing every term of query, newest
// first. A limit of zero or less means no limit.
func (a *Archive) Search(query string, limit int) ([]Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, ErrClosed
	}

	terms := index.Terms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}

	var matches []ksuid.KSUID
	for i, term := range terms {
		ids, err := a.postings(term)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			matches = ids
		} else {
			matches = intersect(matches, ids)
		}
		if len(matches) == 0 {
			return nil, nil
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return ksuid.Compare(matches[i], matches[j]) > 0
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]Record, 0, len(matches))
	for _, id := range matches {
		rec, err := a.get(id)
		if errors.Is(err, ErrNotFound) {
			a.log.Warn().Str("id", id.String()).Msg("posting without entry")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Stats counts entries and postings and reports disk usage.
func (a *Archive) Stats() (Stats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return Stats{}, ErrClosed
	}

	entries, err := a.count([]byte(entryPrefix))
	if err != nil {
		return Stats{}, err
	}
	postings, err := a.count([]byte(index.PostingPrefix))
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Entries:  entries,
		Postings: postings,
		DiskSize: a.db.Metrics().DiskSpaceUsage(),
	}, nil
}

// Close flushes and closes the archive. It waits for operations in flight;
// later calls return ErrClosed.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return ErrClosed
	}
	err := a.db.Close()
	a.db = nil
	a.enc.Close()
	a.dec.Close()
	return err
}

func (a *Archive) encode(entry codec.Entry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("archive: marshal entry: %w", err)
	}
	return a.enc.EncodeAll(data, nil), nil
}

func (a *Archive) decode(value []byte) (codec.Entry, error) {
	data, err := a.dec.DecodeAll(value, nil)
	if err != nil {
		return codec.Entry{}, fmt.Errorf("decompress: %w", err)
	}
	var entry codec.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return codec.Entry{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return codec.Entry{}, fmt.Errorf("invalid entry: %w", err)
	}
	return entry, nil
}

// postings returns the ids indexed under term in ascending order.
func (a *Archive) postings(term string) ([]ksuid.KSUID, error) {
	prefix := index.TermPrefix(term)
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: index.PrefixEnd(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: iterate postings: %w", err)
	}
	defer iter.Close()

	var ids []ksuid.KSUID
	for valid := iter.First(); valid; valid = iter.Next() {
		_, id, err := index.ParsePostingKey(iter.Key())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, iter.Error()
}

func (a *Archive) count(prefix []byte) (int, error) {
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: index.PrefixEnd(prefix),
	})
	if err != nil {
		return 0, fmt.Errorf("archive: iterate: %w", err)
	}
	defer iter.Close()

	n := 0
	for valid := iter.First(); valid; valid = iter.Next() {
		n++
	}
	return n, iter.Error()
}

func entryKey(id ksuid.KSUID) []byte {
	return append([]byte(entryPrefix), id.Bytes()...)
}

// newID mints an id carrying t. Times before the ksuid epoch are clamped to it.
func newID(t time.Time) (ksuid.KSUID, error) {
	if t.Before(ksuidEpoch) {
		t = ksuidEpoch
	}
	return ksuid.NewRandomWithTime(t)
}

// boundID returns the smallest (or largest, when upper is set) id with the
// timestamp of t.
func boundID(t time.Time, upper bool) ksuid.KSUID {
	if t.Before(ksuidEpoch) {
		t = ksuidEpoch
	}
	payload := make([]byte, 16)
	if upper {
		for i := range payload {
			payload[i] = 0xFF
		}
	}
	id, err := ksuid.FromParts(t, payload)
	if err != nil {
		return ksuid.Nil
	}
	return id
}

// intersect keeps the ids of a that also appear in b. Both are sorted.
func intersect(a, b []ksuid.KSUID) []ksuid.KSUID {
	out := a[:0]
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := bytes.Compare(a[i][:], b[j][:]); {
		case c == 0:
			out = append(out, a[i])
			i++
			j++
		case c < 0:
			i++
		default:
			j++
		}
	}
	return out
}
