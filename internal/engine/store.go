package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	MemoryStoreType   = "MemoryStore"
	LocalStoreType    = "LocalStore"
	dirPermissionBits = 0755

	// MemoryScheme prefixes URIs of process-wide memory stores.
	MemoryScheme = "mem://"
)

// Store is a flat key/value space. Keys use '/' as a separator.
type Store interface {
	Get(key string) (io.ReadCloser, error)
	Put(key string, val io.Reader) error
	Has(key string) (bool, error)
	// List returns the keys below prefix, sorted.
	List(prefix string) ([]string, error)
	// Delete removes key and every key below it.
	Delete(prefix string) error
	Type() string
}

func below(key, prefix string) bool {
	return prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/")
}

type MemoryStore struct {
	lk   sync.Mutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[string][]byte{},
	}
}

var (
	memoryStoresLk sync.Mutex
	memoryStores   = map[string]*MemoryStore{}
)

// SharedMemoryStore returns the process-wide memory store of the given
// name, creating it on first use.
func SharedMemoryStore(name string) *MemoryStore {
	memoryStoresLk.Lock()
	defer memoryStoresLk.Unlock()
	s, ok := memoryStores[name]
	if !ok {
		s = NewMemoryStore()
		memoryStores[name] = s
	}
	return s
}

// DropMemoryStore forgets a shared memory store.
func DropMemoryStore(name string) {
	memoryStoresLk.Lock()
	defer memoryStoresLk.Unlock()
	delete(memoryStores, name)
}

func (s *MemoryStore) Type() string { return MemoryStoreType }

func (s *MemoryStore) Get(key string) (io.ReadCloser, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	d, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

func (s *MemoryStore) Put(key string, val io.Reader) error {
	d, err := io.ReadAll(val)
	if err != nil {
		return err
	}

	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[key] = d

	return nil
}

func (s *MemoryStore) Has(key string) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *MemoryStore) List(prefix string) ([]string, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	keys := []string{}
	for k := range s.data {
		if below(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Delete(prefix string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	for k := range s.data {
		if below(k, prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

type LocalStore struct {
	base string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(base string) (*LocalStore, error) {
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, dirPermissionBits); err != nil {
		return nil, err
	}

	return &LocalStore{
		base: base,
	}, nil
}

func (s *LocalStore) Type() string { return LocalStoreType }

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.base, filepath.FromSlash(key))
}

func (s *LocalStore) Get(key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}

func (s *LocalStore) Put(key string, val io.Reader) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), dirPermissionBits); err != nil {
		return err
	}
	// write aside and rename, so readers never see a partial value
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, val); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (s *LocalStore) Has(key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, err
}

func (s *LocalStore) List(prefix string) ([]string, error) {
	keys := []string{}
	root := s.path(prefix)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.base, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) Delete(prefix string) error {
	if prefix == "" {
		entries, err := os.ReadDir(s.base)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(s.base, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	return os.RemoveAll(s.path(prefix))
}

// OpenStore picks the store for uri: a shared memory store for mem://name,
// the local filesystem otherwise.
func OpenStore(uri string) (Store, error) {
	if strings.HasPrefix(uri, MemoryScheme) {
		name := strings.TrimPrefix(uri, MemoryScheme)
		if name == "" {
			return nil, errorf(ErrInvalid, "empty memory store name")
		}
		return SharedMemoryStore(name), nil
	}
	if uri == "" {
		return nil, errorf(ErrInvalid, "empty URI")
	}
	return NewLocalStore(uri)
}
