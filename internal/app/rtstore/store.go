/*
Package rtstore implements the realtime store: a path-addressed tree of JSON
documents with atomic read-modify-write transactions, path-scoped change
subscriptions, and disconnect-triggered cleanup.

Documents live in an embedded buntdb keyspace where the key is the full path
("rooms/aB3xZ1/messages/<key>"). A path's subtree is every key below it, so
reads assemble nested values by prefix scan and deletes cascade the same way.
All mutations for one logical operation run inside a single buntdb update
transaction, which is what makes credit debits and capacity checks atomic.
*/
package rtstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/buntdb"
)

// serverTimestamp is the sentinel type resolved to store time at write.
type serverTimestamp struct{}

// ServerTimestamp marks a field to be replaced with the store's current time
// (milliseconds since epoch) when the enclosing value is written.
var ServerTimestamp = serverTimestamp{}

// Store is a path-addressed tree store backed by buntdb.
type Store struct {
	db *buntdb.DB

	// writeMu serializes mutation + notification so every subscriber observes
	// updates to a given path in write order.
	writeMu sync.Mutex

	// subMu protects the subscription registry.
	subMu     sync.RWMutex
	subs      map[int64]*subscription
	nextSubID int64

	// discMu protects the armed disconnect-cleanup paths, keyed by owner token.
	discMu sync.Mutex
	armed  map[string]map[string]struct{}

	// pushMu guards push-key generation so append keys stay strictly increasing.
	pushMu  sync.Mutex
	pushMs  int64
	pushSeq int

	now func() time.Time
}

// Open opens (or creates) a store at the given file path.
// The special path ":memory:" keeps the tree entirely in memory.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open realtime store at %s: %w", path, err)
	}

	return &Store{
		db:    db,
		subs:  make(map[int64]*subscription),
		armed: make(map[string]map[string]struct{}),
		now:   time.Now,
	}, nil
}

// Close closes the underlying database. Active subscriptions are cancelled.
func (s *Store) Close() error {
	s.subMu.Lock()
	for id, sub := range s.subs {
		close(sub.events)
		delete(s.subs, id)
	}
	s.subMu.Unlock()

	return s.db.Close()
}

// normalizePath trims surrounding slashes and validates every segment.
func normalizePath(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", fmt.Errorf("empty store path")
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			return "", fmt.Errorf("store path %q contains an empty segment", path)
		}
		if strings.ContainsAny(segment, "*?") {
			return "", fmt.Errorf("store path %q contains reserved characters", path)
		}
	}

	return path, nil
}

// Tx is a view over the store inside one atomic update. Every Tx method
// addresses full paths, the same way the Store-level methods do.
type Tx struct {
	btx     *buntdb.Tx
	s       *Store
	changed []string
}

// Read assembles the value at path: the document stored at the exact key
// merged with all child documents below it. The second return reports
// whether anything exists at the path.
func (t *Tx) Read(path string) (json.RawMessage, bool, error) {
	path, err := normalizePath(path)
	if err != nil {
		return nil, false, err
	}
	return readTree(t.btx, path)
}

// ReadInto unmarshals the value at path into dst.
func (t *Tx) ReadInto(path string, dst any) (bool, error) {
	raw, exists, err := t.Read(path)
	if err != nil || !exists {
		return exists, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode value at %s: %w", path, err)
	}
	return true, nil
}

// Write replaces the subtree at path with value.
func (t *Tx) Write(path string, value any) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	raw, err := encodeValue(value, t.s.now())
	if err != nil {
		return err
	}

	if err := deleteSubtree(t.btx, path); err != nil {
		return err
	}

	if _, _, err := t.btx.Set(path, string(raw), nil); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	t.changed = append(t.changed, path)
	return nil
}

// Update shallow-merges partial into the object document at path.
// A missing document is treated as an empty object.
func (t *Tx) Update(path string, partial map[string]any) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	current := map[string]json.RawMessage{}
	if val, err := t.btx.Get(path); err == nil {
		if err := json.Unmarshal([]byte(val), &current); err != nil {
			return fmt.Errorf("cannot merge into non-object value at %s: %w", path, err)
		}
	} else if err != buntdb.ErrNotFound {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	now := t.s.now()
	for key, value := range partial {
		raw, err := encodeValue(value, now)
		if err != nil {
			return err
		}
		current[key] = raw
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode merged value at %s: %w", path, err)
	}

	if _, _, err := t.btx.Set(path, string(raw), nil); err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}

	t.changed = append(t.changed, path)
	return nil
}

// Delete removes the document at path and its entire subtree.
func (t *Tx) Delete(path string) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	if err := deleteSubtree(t.btx, path); err != nil {
		return err
	}

	t.changed = append(t.changed, path)
	return nil
}

// Append writes value under a generated, time-ordered child key of path and
// returns that key. Keys sort lexicographically in generation order, which is
// what makes message read-back order match send order.
func (t *Tx) Append(path string, value any) (string, error) {
	path, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	key := t.s.pushKey()
	if err := t.Write(path+"/"+key, value); err != nil {
		return "", err
	}

	return key, nil
}

// CountChildren returns the number of direct children under path.
func (t *Tx) CountChildren(path string) (int, error) {
	path, err := normalizePath(path)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	prefix := path + "/"

	err = t.btx.AscendKeys(prefix+"*", func(key, _ string) bool {
		rest := strings.TrimPrefix(key, prefix)
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			rest = rest[:idx]
		}
		seen[rest] = struct{}{}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan children of %s: %w", path, err)
	}

	return len(seen), nil
}

// RunUpdate executes fn inside one atomic update transaction. If fn returns an
// error the transaction rolls back and no subscriber is notified; otherwise
// all affected subscribers receive fresh snapshots before the next writer runs.
func (s *Store) RunUpdate(fn func(tx *Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := &Tx{s: s}

	err := s.db.Update(func(btx *buntdb.Tx) error {
		tx.btx = btx
		return fn(tx)
	})
	if err != nil {
		return err
	}

	s.notify(tx.changed)
	return nil
}

// Transact atomically applies fn to the single document at path: fn receives
// the current document (nil if absent) and returns the replacement (nil to
// delete). This is the conditional-update primitive behind credit debits.
func (s *Store) Transact(path string, fn func(current json.RawMessage) (any, error)) error {
	path, err := normalizePath(path)
	if err != nil {
		return err
	}

	return s.RunUpdate(func(tx *Tx) error {
		var current json.RawMessage
		if val, err := tx.btx.Get(path); err == nil {
			current = json.RawMessage(val)
		} else if err != buntdb.ErrNotFound {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if next == nil {
			return tx.Delete(path)
		}
		return tx.Write(path, next)
	})
}

// Read assembles and returns the value at path.
func (s *Store) Read(path string) (json.RawMessage, bool, error) {
	path, err := normalizePath(path)
	if err != nil {
		return nil, false, err
	}

	var raw json.RawMessage
	var exists bool

	err = s.db.View(func(btx *buntdb.Tx) error {
		var viewErr error
		raw, exists, viewErr = readTree(btx, path)
		return viewErr
	})
	if err != nil {
		return nil, false, err
	}

	return raw, exists, nil
}

// ReadInto unmarshals the value at path into dst and reports existence.
func (s *Store) ReadInto(path string, dst any) (bool, error) {
	raw, exists, err := s.Read(path)
	if err != nil || !exists {
		return exists, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode value at %s: %w", path, err)
	}
	return true, nil
}

// Write replaces the subtree at path with value.
func (s *Store) Write(path string, value any) error {
	return s.RunUpdate(func(tx *Tx) error {
		return tx.Write(path, value)
	})
}

// Update shallow-merges partial into the document at path.
func (s *Store) Update(path string, partial map[string]any) error {
	return s.RunUpdate(func(tx *Tx) error {
		return tx.Update(path, partial)
	})
}

// Delete removes the subtree at path.
func (s *Store) Delete(path string) error {
	return s.RunUpdate(func(tx *Tx) error {
		return tx.Delete(path)
	})
}

// Append pushes value under a generated child key of path and returns the key.
func (s *Store) Append(path string, value any) (string, error) {
	var key string
	err := s.RunUpdate(func(tx *Tx) error {
		var txErr error
		key, txErr = tx.Append(path, value)
		return txErr
	})
	return key, err
}

// pushKey generates a strictly increasing, lexicographically sortable child key:
// zero-padded milliseconds, a same-millisecond sequence number, and the key marker.
func (s *Store) pushKey() string {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	ms := s.now().UnixMilli()
	if ms <= s.pushMs {
		s.pushSeq++
	} else {
		s.pushMs = ms
		s.pushSeq = 0
	}

	return fmt.Sprintf("%013d%04d", s.pushMs, s.pushSeq)
}

// encodeValue marshals value to JSON after resolving ServerTimestamp sentinels.
func encodeValue(value any, now time.Time) (json.RawMessage, error) {
	resolved := resolveTimestamps(value, now)

	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode store value: %w", err)
	}
	return raw, nil
}

// resolveTimestamps replaces ServerTimestamp sentinels in maps and slices with
// the current store time in milliseconds.
func resolveTimestamps(value any, now time.Time) any {
	switch v := value.(type) {
	case serverTimestamp:
		return now.UnixMilli()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = resolveTimestamps(item, now)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveTimestamps(item, now)
		}
		return out
	default:
		return value
	}
}

// readTree assembles the exact-key document at path with all child documents.
func readTree(btx *buntdb.Tx, path string) (json.RawMessage, bool, error) {
	var exact json.RawMessage
	hasExact := false

	if val, err := btx.Get(path); err == nil {
		exact = json.RawMessage(val)
		hasExact = true
	} else if err != buntdb.ErrNotFound {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	prefix := path + "/"
	type childEntry struct {
		relPath string
		raw     string
	}
	var children []childEntry

	err := btx.AscendKeys(prefix+"*", func(key, val string) bool {
		children = append(children, childEntry{relPath: strings.TrimPrefix(key, prefix), raw: val})
		return true
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to scan subtree of %s: %w", path, err)
	}

	if !hasExact && len(children) == 0 {
		return nil, false, nil
	}

	if len(children) == 0 {
		return exact, true, nil
	}

	// Merge the exact document (when it is an object) with the nested children.
	root := make(map[string]any)
	if hasExact {
		var exactObj map[string]any
		if err := json.Unmarshal(exact, &exactObj); err == nil {
			root = exactObj
		}
	}

	for _, child := range children {
		segments := strings.Split(child.relPath, "/")
		node := root
		for _, segment := range segments[:len(segments)-1] {
			next, ok := node[segment].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[segment] = next
			}
			node = next
		}

		var leaf any
		if err := json.Unmarshal([]byte(child.raw), &leaf); err != nil {
			return nil, false, fmt.Errorf("corrupt document at %s/%s: %w", path, child.relPath, err)
		}
		node[segments[len(segments)-1]] = leaf
	}

	raw, err := json.Marshal(root)
	if err != nil {
		return nil, false, fmt.Errorf("failed to assemble subtree at %s: %w", path, err)
	}

	return raw, true, nil
}

// deleteSubtree removes the exact key and every key below path.
func deleteSubtree(btx *buntdb.Tx, path string) error {
	keys := []string{}

	if _, err := btx.Get(path); err == nil {
		keys = append(keys, path)
	} else if err != buntdb.ErrNotFound {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	err := btx.AscendKeys(path+"/*", func(key, _ string) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to scan subtree of %s: %w", path, err)
	}

	for _, key := range keys {
		if _, err := btx.Delete(key); err != nil && err != buntdb.ErrNotFound {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}

	return nil
}
