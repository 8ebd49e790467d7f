package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/textnorm"
)

const (
	defaultSearchLimit = 10
	maxAddAttempts     = 3
)

// Store is an Index backed by an embedded badger database.
//
// Key layout:
//
//	entry/<id>                    JSON Entry
//	fp/<namespace>/<fingerprint>  entry id
//	ns/<namespace>/<id>           empty marker for namespace scans
type Store struct {
	db  *badger.DB
	log *zap.Logger
	now func() time.Time
}

// Open opens (or creates) the index at path. An empty path keeps everything
// in memory, which is what tests and local development use.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLogger{log: log.Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Store{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores the content unless the namespace already holds the fingerprint,
// in which case the existing entry is returned with Created=false.
func (s *Store) Add(ctx context.Context, req AddRequest) (AddResult, error) {
	if req.Namespace == "" {
		return AddResult{}, ErrInvalidNamespace
	}
	if req.Fingerprint == "" {
		return AddResult{}, ErrInvalidFingerprint
	}
	var (
		res AddResult
		err error
	)
	for attempt := 1; attempt <= maxAddAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return AddResult{}, err
		}
		res, err = s.add(req)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		// another writer touched the same fingerprint; re-read and converge
		s.log.Debug("index add conflict", zap.String("namespace", req.Namespace), zap.Int("attempt", attempt))
	}
	if err != nil {
		return AddResult{}, fmt.Errorf("index add: %w", err)
	}
	return res, nil
}

func (s *Store) add(req AddRequest) (AddResult, error) {
	var res AddResult
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(fpKey(req.Namespace, req.Fingerprint))
		switch {
		case err == nil:
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entry, err := getEntry(txn, string(id))
			if err != nil {
				return err
			}
			res = AddResult{EntryID: entry.ID, Created: false, Entry: *entry}
			return nil
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		entry := Entry{
			ID:          EntryID(req.Namespace, req.Fingerprint),
			Namespace:   req.Namespace,
			Key:         req.Key,
			Title:       req.Title,
			Text:        req.Text,
			Fingerprint: req.Fingerprint,
			Metadata:    copyMetadata(req.Metadata),
			CreatedAt:   s.now(),
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := txn.Set(entryKey(entry.ID), data); err != nil {
			return err
		}
		if err := txn.Set(fpKey(entry.Namespace, entry.Fingerprint), []byte(entry.ID)); err != nil {
			return err
		}
		if err := txn.Set(nsKey(entry.Namespace, entry.ID), nil); err != nil {
			return err
		}
		res = AddResult{EntryID: entry.ID, Created: true, Entry: entry}
		return nil
	})
	return res, err
}

// Get returns a single entry.
func (s *Store) Get(ctx context.Context, entryID string) (*Entry, error) {
	var entry *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = getEntry(txn, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes the entry and its lookup keys. Missing entries are ignored.
func (s *Store) Delete(ctx context.Context, entryID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry, err := getEntry(txn, entryID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(entryKey(entry.ID)); err != nil {
			return err
		}
		if err := txn.Delete(nsKey(entry.Namespace, entry.ID)); err != nil {
			return err
		}
		// Only drop the fingerprint mapping while it still points at us.
		item, err := txn.Get(fpKey(entry.Namespace, entry.Fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(owner) == entry.ID {
			return txn.Delete(fpKey(entry.Namespace, entry.Fingerprint))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index delete: %w", err)
	}
	return nil
}

// Search ranks the namespace's entries by the share of query terms they
// contain.
func (s *Store) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if req.Namespace == "" {
		return SearchResponse{}, ErrInvalidNamespace
	}
	terms := textnorm.Terms(req.Query)
	if len(terms) == 0 {
		return SearchResponse{Results: []SearchResult{}, Entries: []Entry{}}, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	type scored struct {
		entry Entry
		score float64
	}
	var hits []scored
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := nsPrefix(req.Namespace)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := string(it.Item().Key()[len(prefix):])
			entry, err := getEntry(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			score := overlap(terms, entry)
			if score > 0 && score >= req.ScoreThreshold {
				hits = append(hits, scored{entry: *entry, score: score})
			}
		}
		return nil
	})
	if err != nil {
		return SearchResponse{}, fmt.Errorf("index search: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].entry.ID < hits[j].entry.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	resp := SearchResponse{
		Results: make([]SearchResult, 0, len(hits)),
		Entries: make([]Entry, 0, len(hits)),
	}
	for _, h := range hits {
		resp.Results = append(resp.Results, SearchResult{
			EntryID: h.entry.ID,
			Key:     h.entry.Key,
			Title:   h.entry.Title,
			Score:   h.score,
		})
		resp.Entries = append(resp.Entries, h.entry)
	}
	return resp, nil
}

func overlap(terms []string, entry *Entry) float64 {
	words := make(map[string]struct{})
	for _, w := range textnorm.Terms(entry.Title + " " + entry.Text) {
		words[w] = struct{}{}
	}
	matched := 0
	for _, t := range terms {
		if _, ok := words[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func getEntry(txn *badger.Txn, id string) (*Entry, error) {
	item, err := txn.Get(entryKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var entry Entry
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entry)
	})
	if err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", id, err)
	}
	return &entry, nil
}

func copyMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func entryKey(id string) []byte { return []byte("entry/" + id) }
func fpKey(namespace, fp string) []byte { return []byte("fp/" + namespace + "/" + fp) }
func nsKey(namespace, id string) []byte { return []byte("ns/" + namespace + "/" + id) }
func nsPrefix(namespace string) []byte { return []byte("ns/" + namespace + "/") }

type badgerLogger struct {
	log *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(msg string, args ...interface{}) { l.log.Errorf(msg, args...) }
func (l *badgerLogger) Warningf(msg string, args ...interface{}) { l.log.Warnf(msg, args...) }
func (l *badgerLogger) Infof(msg string, args ...interface{}) { l.log.Debugf(msg, args...) }
func (l *badgerLogger) Debugf(msg string, args ...interface{}) { l.log.Debugf(msg, args...) }
