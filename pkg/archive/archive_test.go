package archive

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/chatlog/pkg/codec"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(t.TempDir(), Options{Compression: "fastest"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func testEntry(ts uint32, sender, text string) codec.Entry {
	s := codec.Name(sender, sender)
	return codec.Entry{
		EntryType: 0x0A,
		Timestamp: ts,
		Sender:    &s,
		Message:   codec.Message{codec.PlainText(text)},
	}
}

func TestOpen_UnknownCompression(t *testing.T) {
	_, err := Open(t.TempDir(), Options{Compression: "ludicrous"})
	assert.Error(t, err)
}

func TestArchive_PutGet(t *testing.T) {
	a := openTestArchive(t)

	sender := codec.Name("Ayla Vane", "Ayla")
	entry := codec.Entry{
		EntryType: 0x0C,
		Timestamp: 1700000000,
		Sender:    &sender,
		Message: codec.Message{
			codec.PlainText("ask "),
			codec.Name("Bren", "Bren the Bold"),
			codec.PlainText(" about "),
			codec.AutoTranslate(2, 0x010203),
		},
	}

	id, err := a.Put(entry)
	require.NoError(t, err)
	assert.Equal(t, entry.Time(), id.Time().UTC())

	rec, err := a.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, entry, rec.Entry)
}

func TestArchive_GetMissing(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.Get(ksuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_PutBatchOrder(t *testing.T) {
	a := openTestArchive(t)

	entries := []codec.Entry{
		testEntry(1700000300, "c", "third"),
		testEntry(1700000100, "a", "first"),
		testEntry(1700000200, "b", "second"),
	}
	ids, err := a.PutBatch(entries)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	for i, id := range ids {
		rec, err := a.Get(id)
		require.NoError(t, err)
		assert.Equal(t, entries[i].Message, rec.Message)
	}
}

func TestArchive_Range(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.PutBatch([]codec.Entry{
		testEntry(1700000300, "c", "third"),
		testEntry(1700000100, "a", "first"),
		testEntry(1700000200, "b", "second"),
		testEntry(1700000400, "d", "fourth"),
	})
	require.NoError(t, err)

	collect := func(from, to time.Time) []string {
		var out []string
		require.NoError(t, a.Range(from, to, func(r Record) error {
			out = append(out, r.Message.DisplayText())
			return nil
		}))
		return out
	}

	assert.Equal(t, []string{"first", "second", "third", "fourth"}, collect(time.Time{}, time.Time{}))
	assert.Equal(t, []string{"second", "third"}, collect(time.Unix(1700000200, 0), time.Unix(1700000300, 0)))
	assert.Empty(t, collect(time.Unix(1800000000, 0), time.Time{}))
}

func TestArchive_RangeStops(t *testing.T) {
	a := openTestArchive(t)
	_, err := a.PutBatch([]codec.Entry{
		testEntry(1700000100, "a", "one"),
		testEntry(1700000200, "a", "two"),
	})
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = a.Range(time.Time{}, time.Time{}, func(Record) error {
		calls++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, calls)
}

func TestArchive_PreEpochTimestamps(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.PutBatch([]codec.Entry{
		testEntry(1100000000, "old", "ancient"),
		testEntry(1200000000, "old", "older"),
	})
	require.NoError(t, err)

	var got []uint32
	require.NoError(t, a.Range(time.Unix(1150000000, 0), time.Unix(1250000000, 0), func(r Record) error {
		got = append(got, r.Timestamp)
		return nil
	}))
	assert.Equal(t, []uint32{1200000000}, got)
}

func TestArchive_Search(t *testing.T) {
	a := openTestArchive(t)

	ids, err := a.PutBatch([]codec.Entry{
		testEntry(1700000100, "Ayla", "Where is the INN?"),
		testEntry(1700000200, "Bren", "the inn is north"),
		testEntry(1700000300, "Ayla", "thanks"),
	})
	require.NoError(t, err)

	recs, err := a.Search("inn", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ids[1], recs[0].ID)
	assert.Equal(t, ids[0], recs[1].ID)

	recs, err = a.Search("Inn north", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ids[1], recs[0].ID)

	recs, err = a.Search("ayla", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ids[2], recs[0].ID)

	recs, err = a.Search("dragon", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = a.Search(" ?! ", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestArchive_SearchAutoTranslate(t *testing.T) {
	a := openTestArchive(t)

	entry := testEntry(1700000000, "Ayla", "see ")
	entry.Message = append(entry.Message, codec.AutoTranslate(5, 123))
	id, err := a.Put(entry)
	require.NoError(t, err)

	recs, err := a.Search("123", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)
}

func TestArchive_Delete(t *testing.T) {
	a := openTestArchive(t)

	id, err := a.Put(testEntry(1700000000, "Ayla", "hello there"))
	require.NoError(t, err)

	require.NoError(t, a.Delete(id))
	_, err = a.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)

	recs, err := a.Search("hello", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	stats, err := a.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.Postings)

	assert.ErrorIs(t, a.Delete(id), ErrNotFound)
}

func TestArchive_Stats(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.PutBatch([]codec.Entry{
		testEntry(1700000100, "ayla", "hello world"),
		testEntry(1700000200, "bren", "hello"),
	})
	require.NoError(t, err)

	stats, err := a.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	// ayla, hello, world + bren, hello
	assert.Equal(t, 5, stats.Postings)
}

func TestArchive_Reopen(t *testing.T) {
	dir := t.TempDir()

	a, err := Open(dir, Options{Sync: true})
	require.NoError(t, err)
	id, err := a.Put(testEntry(1700000000, "ayla", "persisted"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	a, err = Open(dir, Options{})
	require.NoError(t, err)
	defer a.Close()

	rec, err := a.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "persisted", rec.Message.DisplayText())
}

func TestArchive_Closed(t *testing.T) {
	a, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = a.Put(testEntry(1700000000, "a", "b"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.Get(ksuid.New())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.Close(), ErrClosed)
}

func TestArchive_StatsDuringClose(t *testing.T) {
	a, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err := a.Put(testEntry(uint32(1700000000+i), "ayla", "hello there"))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 50; i++ {
				stats, err := a.Stats()
				if err != nil {
					assert.ErrorIs(t, err, ErrClosed)
					return
				}
				assert.Equal(t, 20, stats.Entries)
			}
		}()
	}

	close(start)
	require.NoError(t, a.Close())
	wg.Wait()

	_, err = a.Stats()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.Search("hello", 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.Delete(ksuid.New()), ErrClosed)
}

func TestArchive_GetRejectsSegmentWithoutKind(t *testing.T) {
	a := openTestArchive(t)

	id, err := newID(time.Unix(1700000000, 0))
	require.NoError(t, err)
	value := a.enc.EncodeAll([]byte(`{"timestamp":1700000000,"message":[{"text":"hi"}]}`), nil)
	require.NoError(t, a.db.Set(entryKey(id), value, pebble.Sync))

	_, err = a.Get(id)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	err = a.Range(time.Time{}, time.Time{}, func(Record) error { return nil })
	assert.Error(t, err)
}
