package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ppiankov/claimstore/internal/index"
	"github.com/ppiankov/claimstore/internal/model"
	sbadger "github.com/ppiankov/claimstore/internal/storage/badger"
)

// Key layout
const (
	prefixEntry = "entry/"
	prefixRel   = "rel/"
	prefixIndex = "idx/"
	keySeq      = "meta/seq"
)

func entryKey(id string) []byte {
	return []byte(prefixEntry + id)
}

func relKey(from, to model.ClaimRef) []byte {
	return []byte(prefixRel + from.String() + "|" + to.String())
}

func parseRelKey(k string) (model.ClaimRef, model.ClaimRef, error) {
	rest, ok := strings.CutPrefix(k, prefixRel)
	if !ok {
		return model.ClaimRef{}, model.ClaimRef{}, fmt.Errorf("not a relationship key: %q", k)
	}
	a, b, ok := strings.Cut(rest, "|")
	if !ok {
		return model.ClaimRef{}, model.ClaimRef{}, fmt.Errorf("malformed relationship key: %q", k)
	}
	from, err := model.ParseClaimRef(a)
	if err != nil {
		return model.ClaimRef{}, model.ClaimRef{}, err
	}
	to, err := model.ParseClaimRef(b)
	if err != nil {
		return model.ClaimRef{}, model.ClaimRef{}, err
	}
	return from, to, nil
}

// relRecord is the value stored under a relationship key
type relRecord struct {
	Kind       model.RelationKind `json:"kind"`
	DetectedAt time.Time          `json:"detected_at"`
}

// writeSet collects the records of one commit
type writeSet struct {
	entries []*model.Entry
	edges   []model.Relationship
	records []index.Record
	seq     uint64
	wipe    bool // drop every persisted index record first
}

func (w *writeSet) touch(ix *index.Index, e *model.Entry) {
	for kind, keys := range index.Touched(e) {
		for _, k := range keys {
			w.records = append(w.records, ix.Record(kind, k))
		}
	}
}

// commit writes the set in a single transaction. Once started it runs to
// completion regardless of the caller's context.
func commit(ctx context.Context, db *sbadger.DB, w *writeSet) error {
	return db.WithTxn(context.WithoutCancel(ctx), func(txn *badger.Txn) error {
		if w.wipe {
			if err := deletePrefix(txn, prefixIndex); err != nil {
				return err
			}
		}
		for _, e := range w.entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode entry %s: %w", e.ID, err)
			}
			if err := txn.Set(entryKey(e.ID), data); err != nil {
				return fmt.Errorf("write entry %s: %w", e.ID, err)
			}
		}
		for _, r := range w.edges {
			data, err := json.Marshal(relRecord{Kind: r.Kind, DetectedAt: r.DetectedAt})
			if err != nil {
				return fmt.Errorf("encode relationship: %w", err)
			}
			if err := txn.Set(relKey(r.From, r.To), data); err != nil {
				return fmt.Errorf("write relationship: %w", err)
			}
		}
		for _, rec := range w.records {
			data, err := json.Marshal(rec.IDs)
			if err != nil {
				return fmt.Errorf("encode index record: %w", err)
			}
			if err := txn.Set([]byte(rec.StorageKey()), data); err != nil {
				return fmt.Errorf("write index record %s: %w", rec.StorageKey(), err)
			}
		}
		if w.seq > 0 {
			if err := txn.Set([]byte(keySeq), []byte(strconv.FormatUint(w.seq, 10))); err != nil {
				return fmt.Errorf("write sequence: %w", err)
			}
		}
		return nil
	})
}

func deletePrefix(txn *badger.Txn, prefix string) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}

// scan calls fn for every key/value under a prefix
func scan(txn *badger.Txn, prefix string, fn func(key string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read %s: %w", item.Key(), err)
		}
		if err := fn(string(item.KeyCopy(nil)), val); err != nil {
			return err
		}
	}
	return nil
}

// persisted is everything read back from the database on open
type persisted struct {
	entries []*model.Entry
	edges   []model.Relationship
	records []index.Record
	seq     uint64
}

func load(ctx context.Context, db *sbadger.DB) (*persisted, error) {
	p := &persisted{}
	err := db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		err := scan(txn, prefixEntry, func(key string, val []byte) error {
			var e model.Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			p.entries = append(p.entries, &e)
			return nil
		})
		if err != nil {
			return err
		}

		err = scan(txn, prefixRel, func(key string, val []byte) error {
			from, to, err := parseRelKey(key)
			if err != nil {
				return err
			}
			var rec relRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			p.edges = append(p.edges, model.Relationship{From: from, Kind: rec.Kind, To: to, DetectedAt: rec.DetectedAt})
			return nil
		})
		if err != nil {
			return err
		}

		p.records, err = readIndexRecords(txn)
		if err != nil {
			return err
		}

		item, err := txn.Get([]byte(keySeq))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read sequence: %w", err)
		}
		return item.Value(func(val []byte) error {
			p.seq, err = strconv.ParseUint(string(val), 10, 64)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(p.entries, func(a, b *model.Entry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	return p, nil
}

func readIndexRecords(txn *badger.Txn) ([]index.Record, error) {
	var out []index.Record
	err := scan(txn, prefixIndex, func(key string, val []byte) error {
		kind, k, err := index.ParseStorageKey(key)
		if err != nil {
			return err
		}
		var ids []string
		if err := json.Unmarshal(val, &ids); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, index.Record{Kind: kind, Key: k, IDs: ids})
		return nil
	})
	return out, err
}

// loadIndexRecords reads the persisted index records only
func loadIndexRecords(ctx context.Context, db *sbadger.DB) ([]index.Record, error) {
	var out []index.Record
	err := db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		out, err = readIndexRecords(txn)
		return err
	})
	return out, err
}
