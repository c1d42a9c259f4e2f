package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"
	"github.com/valyala/fastjson"

	"github.com/ssargent/chatlog/pkg/archive"
	"github.com/ssargent/chatlog/pkg/codec"
)

const (
	defaultListLimit   = 100
	defaultSearchLimit = 50
	maxLimit           = 1000
)

var errLimitReached = errors.New("limit reached")

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	APIResponse
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleDecode godoc
//
//	@Summary		Decode raw records
//	@Description	Decode one raw record, or base64 records wrapped in JSON
//	@Tags			decode
//	@Accept			octet-stream,json
//	@Produce		json
//	@Param			store	query		bool	false	"Store decoded entries in the archive"
//	@Success		200		{object}	APIResponse
//	@Failure		400		{object}	APIResponse
//	@Failure		413		{object}	APIResponse
//	@Failure		422		{object}	APIResponse
//	@Router			/decode [post]
//	@Security		ApiKeyAuth
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	store := false
	if v := r.URL.Query().Get("store"); v != "" {
		store, err = strconv.ParseBool(v)
		if err != nil {
			sendError(w, "Invalid store parameter", http.StatusBadRequest)
			return
		}
	}

	if isJSON(r.Header.Get("Content-Type")) {
		s.decodeJSON(w, body, store)
		return
	}

	result := s.decodeRecord(body)
	if result == nil {
		sendError(w, "Record could not be decoded", http.StatusUnprocessableEntity)
		return
	}
	if store && !s.storeEntries(w, []*DecodedEntry{result}) {
		return
	}
	sendSuccess(w, result)
}

// decodeJSON handles a single {"record": "<base64>"} object or an array of them
func (s *Server) decodeJSON(w http.ResponseWriter, body []byte, store bool) {
	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		sendError(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	switch v.Type() {
	case fastjson.TypeArray:
		items, _ := v.Array()
		results := make([]*DecodedEntry, len(items))
		for i, item := range items {
			raw, ok := recordBytes(item)
			if !ok {
				s.metrics.RecordDecode(outcomeInvalid, nil)
				continue
			}
			results[i] = s.decodeRecord(raw)
		}
		if store && !s.storeEntries(w, results) {
			return
		}
		sendSuccess(w, results)

	case fastjson.TypeObject:
		raw, ok := recordBytes(v)
		if !ok {
			s.metrics.RecordDecode(outcomeInvalid, nil)
			sendError(w, "Field record must be a base64 string", http.StatusBadRequest)
			return
		}
		result := s.decodeRecord(raw)
		if result == nil {
			sendError(w, "Record could not be decoded", http.StatusUnprocessableEntity)
			return
		}
		if store && !s.storeEntries(w, []*DecodedEntry{result}) {
			return
		}
		sendSuccess(w, result)

	default:
		sendError(w, "Expected a JSON object or array", http.StatusBadRequest)
	}
}

// decodeRecord decodes raw and records the outcome; nil means undecodable
func (s *Server) decodeRecord(raw []byte) *DecodedEntry {
	entry, ok := codec.Decode(raw)
	if !ok {
		s.metrics.RecordDecode(outcomeUndecodable, nil)
		return nil
	}
	s.metrics.RecordDecode(outcomeDecoded, &entry)
	return newDecodedEntry("", entry)
}

// storeEntries archives the non-nil results and fills in their ids. It writes
// an error response and returns false on failure.
func (s *Server) storeEntries(w http.ResponseWriter, results []*DecodedEntry) bool {
	if s.archive == nil {
		sendError(w, "Archive unavailable", http.StatusServiceUnavailable)
		return false
	}

	var entries []codec.Entry
	var targets []*DecodedEntry
	for _, res := range results {
		if res != nil {
			entries = append(entries, res.Entry)
			targets = append(targets, res)
		}
	}
	if len(entries) == 0 {
		return true
	}

	ids, err := s.archive.PutBatch(entries)
	if err != nil {
		s.log.Error().Err(err).Int("entries", len(entries)).Msg("failed to archive entries")
		sendError(w, "Failed to store entries", http.StatusInternalServerError)
		return false
	}
	for i, id := range ids {
		targets[i].ID = id.String()
	}
	return true
}

// handleListEntries godoc
//
//	@Summary		List entries in a time range
//	@Tags			entries
//	@Produce		json
//	@Param			from	query		string	false	"Start time, Unix seconds or RFC3339"
//	@Param			to		query		string	false	"End time, Unix seconds or RFC3339"
//	@Param			type	query		int		false	"Entry type filter"
//	@Param			limit	query		int		false	"Maximum entries returned"
//	@Success		200		{object}	APIResponse
//	@Failure		400		{object}	APIResponse
//	@Router			/entries [get]
//	@Security		ApiKeyAuth
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchive(w) {
		return
	}
	q := r.URL.Query()

	from, err := parseTime(q.Get("from"))
	if err != nil {
		sendError(w, "Invalid from parameter", http.StatusBadRequest)
		return
	}
	to, err := parseTime(q.Get("to"))
	if err != nil {
		sendError(w, "Invalid to parameter", http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(q.Get("limit"), defaultListLimit)
	if err != nil {
		sendError(w, "Invalid limit parameter", http.StatusBadRequest)
		return
	}

	filterType := -1
	if t := q.Get("type"); t != "" {
		v, err := strconv.ParseUint(t, 0, 8)
		if err != nil {
			sendError(w, "Invalid type parameter", http.StatusBadRequest)
			return
		}
		filterType = int(v)
	}

	results := make([]*DecodedEntry, 0)
	err = s.archive.Range(from, to, func(rec archive.Record) error {
		if filterType >= 0 && int(rec.EntryType) != filterType {
			return nil
		}
		results = append(results, fromRecord(rec))
		if len(results) >= limit {
			return errLimitReached
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		s.log.Error().Err(err).Msg("failed to list entries")
		sendError(w, "Failed to list entries", http.StatusInternalServerError)
		return
	}
	sendSuccess(w, results)
}

// handleGetEntry godoc
//
//	@Summary		Get an entry by id
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry id"
//	@Success		200	{object}	APIResponse
//	@Failure		400	{object}	APIResponse
//	@Failure		404	{object}	APIResponse
//	@Router			/entries/{id} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchive(w) {
		return
	}

	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid entry id", http.StatusBadRequest)
		return
	}

	rec, err := s.archive.Get(id)
	if errors.Is(err, archive.ErrNotFound) {
		sendError(w, "Entry not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("id", id.String()).Msg("failed to get entry")
		sendError(w, "Failed to get entry", http.StatusInternalServerError)
		return
	}
	sendSuccess(w, fromRecord(rec))
}

// handleSearch godoc
//
//	@Summary		Full-text search
//	@Tags			entries
//	@Produce		json
//	@Param			q		query		string	true	"Query; every term must match"
//	@Param			limit	query		int		false	"Maximum entries returned"
//	@Success		200		{object}	APIResponse
//	@Failure		400		{object}	APIResponse
//	@Router			/search [get]
//	@Security		ApiKeyAuth
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchive(w) {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		sendError(w, "Query parameter q is required", http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultSearchLimit)
	if err != nil {
		sendError(w, "Invalid limit parameter", http.StatusBadRequest)
		return
	}

	recs, err := s.archive.Search(query, limit)
	if errors.Is(err, archive.ErrEmptyQuery) {
		sendError(w, "Query has no searchable terms", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("search failed")
		sendError(w, "Search failed", http.StatusInternalServerError)
		return
	}

	results := make([]*DecodedEntry, 0, len(recs))
	for _, rec := range recs {
		results = append(results, fromRecord(rec))
	}
	sendSuccess(w, results)
}

// handleStats godoc
//
//	@Summary		Archive statistics
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	APIResponse
//	@Router			/stats [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchive(w) {
		return
	}
	stats, err := s.archive.Stats()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to read stats: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.UpdateArchiveStats(stats)
	sendSuccess(w, stats)
}

func (s *Server) requireArchive(w http.ResponseWriter) bool {
	if s.archive == nil {
		sendError(w, "Archive unavailable", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// recordBytes extracts and base64-decodes the record field of an object
func recordBytes(v *fastjson.Value) ([]byte, bool) {
	if v.Type() != fastjson.TypeObject {
		return nil, false
	}
	field := v.Get("record")
	if field == nil || field.Type() != fastjson.TypeString {
		return nil, false
	}
	sb, err := field.StringBytes()
	if err != nil {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(string(sb))
	if err != nil {
		return nil, false
	}
	return raw, true
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// parseTime accepts Unix seconds or RFC3339; empty means unbounded
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Parse(time.RFC3339, v)
}

func parseLimit(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
