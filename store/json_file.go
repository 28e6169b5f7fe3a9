package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const lockRetryInterval = 10 * time.Millisecond

var errInvalidCollection = errors.New("invalid collection name")

// JsonFileStore serves each collection from a separate JSON file on disk.
// Every file is an object of document id -> document, using the extended
// JSON tags for timestamps, references, geo points and bytes.
//
// Layout:
//
//	data_dir/
//	  .lock          # shared/exclusive lock for cooperating writers
//	  users.json     # "users" collection
//	  tracks.json    # "tracks" collection
type JsonFileStore struct {
	dir string
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	return &JsonFileStore{dir: dir}, nil
}

func (s *JsonFileStore) collectionPath(collection string) (string, error) {
	if collection == "" || strings.ContainsAny(collection, `/\`) || strings.HasPrefix(collection, ".") {
		return "", errInvalidCollection
	}
	return filepath.Join(s.dir, collection+".json"), nil
}

func (s *JsonFileStore) lockPath() string {
	return filepath.Join(s.dir, ".lock")
}

// withLock runs fn while holding the directory lock. Each call takes its own
// file handle so concurrent readers never release each other's lock.
func (s *JsonFileStore) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	fl := flock.New(s.lockPath())
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryInterval)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryInterval)
	}
	if err != nil {
		return errors.Wrap(err, "lock data dir")
	}
	if !locked {
		return errors.New("lock data dir: not acquired")
	}
	defer fl.Unlock()
	return fn()
}

// readFile returns the raw collection file, or nil when it does not exist.
func (s *JsonFileStore) readFile(ctx context.Context, collection string) ([]byte, error) {
	path, err := s.collectionPath(collection)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.withLock(ctx, false, func() error {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return errors.Wrapf(err, "read %s", path)
		}
		data = b
		return nil
	})
	return data, err
}

func (s *JsonFileStore) readCollection(ctx context.Context, collection string) (map[string]Document, error) {
	raw, err := s.readFile(ctx, collection)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]Document{}, nil
	}
	return decodeCollection(raw)
}

func (s *JsonFileStore) FetchPage(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	docs, err := s.readCollection(ctx, collection)
	if err != nil {
		return nil, storeErr("json", "fetch page", collection, err)
	}
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snaps := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		snaps = append(snaps, Snapshot{ID: id, Data: docs[id]})
	}
	return paginate(snaps, q), nil
}

// FetchOne scans the collection file for a single entry and only decodes
// that document.
func (s *JsonFileStore) FetchOne(ctx context.Context, collection, id string) (Snapshot, error) {
	raw, err := s.readFile(ctx, collection)
	if err != nil {
		return Snapshot{}, storeErr("json", "fetch one", collection, err)
	}
	if raw == nil {
		return Snapshot{}, ErrNotFound
	}
	if !gjson.ValidBytes(raw) {
		return Snapshot{}, storeErr("json", "fetch one", collection, errors.New("malformed collection file"))
	}

	// A repeated key resolves to its last occurrence, as in a full decode.
	var found *gjson.Result
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		if key.String() == id {
			v := value
			found = &v
		}
		return true
	})
	if found == nil || !found.IsObject() {
		return Snapshot{}, ErrNotFound
	}
	doc, err := decodeDocument([]byte(found.Raw))
	if err != nil {
		return Snapshot{}, storeErr("json", "fetch one", collection, err)
	}
	return Snapshot{ID: id, Data: doc}, nil
}

// Put inserts or replaces a document, rewriting the collection file under
// the exclusive lock.
func (s *JsonFileStore) Put(collection, id string, doc Document) error {
	path, err := s.collectionPath(collection)
	if err != nil {
		return err
	}
	return s.withLock(context.Background(), true, func() error {
		coll := map[string]any{}
		if raw, err := os.ReadFile(path); err == nil {
			docs, err := decodeCollection(raw)
			if err != nil {
				return err
			}
			for k, v := range docs {
				coll[k] = v
			}
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "read %s", path)
		}
		coll[id] = doc
		b, err := encodeDocument(coll)
		if err != nil {
			return err
		}
		return errors.Wrapf(os.WriteFile(path, b, 0o644), "write %s", path)
	})
}

// ListCollections returns the names of all collection files.
func (s *JsonFileStore) ListCollections() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (s *JsonFileStore) Ping(context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *JsonFileStore) Close() error { return nil }
