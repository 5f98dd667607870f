package medium

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

const tempPrefix = ".tmp-"

// Filesystem stores one file per key under a root directory of a go-billy
// filesystem. Files are named by the SHA-256 of the key and start with a
// header line holding the encoded key, so names stay short however long the
// key is. Writes go to a temporary file that is renamed into place, so a
// failed write never leaves a partial value behind.
//
// Files under root that the medium did not write are ignored by Keys and
// left in place by Clear.
type Filesystem struct {
	mu    sync.Mutex
	bfs   billy.Filesystem
	root  string
	quota int64
	sizes map[string]int64
	used  int64
}

// NewFilesystem creates a medium rooted at root on bfs. A nil bfs selects an
// in-memory filesystem. Files already present under root count toward the
// quota.
func NewFilesystem(bfs billy.Filesystem, root string, quota int64) (*Filesystem, error) {
	if bfs == nil {
		bfs = memfs.New()
	}
	if root == "" {
		root = "/"
	}

	if err := bfs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root directory %q: %w", root, err)
	}

	f := &Filesystem{
		bfs:   bfs,
		root:  root,
		quota: quota,
	}
	if err := f.rescan(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Filesystem) pathFor(key string) string {
	return path.Join(f.root, nameFor(key))
}

// readKey returns the key recorded in the header of the file called name, and
// the header length. ok is false for files the medium did not write.
func (f *Filesystem) readKey(name string) (key string, header int64, ok bool) {
	if !isName(name) {
		return "", 0, false
	}
	file, err := f.bfs.Open(path.Join(f.root, name))
	if err != nil {
		return "", 0, false
	}
	defer func() {
		_ = file.Close()
	}()

	line, err := bufio.NewReader(file).ReadString('\n')
	if err != nil {
		return "", 0, false
	}
	key, ok = decodeKey(strings.TrimSuffix(line, "\n"))
	if !ok || nameFor(key) != name {
		return "", 0, false
	}
	return key, int64(len(line)), true
}

// rescan rebuilds size accounting from the directory listing.
// Caller must hold f.mu or be the constructor.
func (f *Filesystem) rescan() error {
	infos, err := f.bfs.ReadDir(f.root)
	if err != nil {
		return fmt.Errorf("failed to list %q: %w", f.root, err)
	}

	sizes := make(map[string]int64, len(infos))
	var used int64
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		key, header, ok := f.readKey(info.Name())
		if !ok {
			continue
		}
		size := int64(len(key)) + info.Size() - header
		sizes[key] = size
		used += size
	}

	f.sizes = sizes
	f.used = used
	return nil
}

// Get reads the file for key.
func (f *Filesystem) Get(_ context.Context, key string) ([]byte, error) {
	data, err := util.ReadFile(f.bfs, f.pathFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}

	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return nil, fmt.Errorf("entry for %q has no key header", key)
	}
	stored, ok := decodeKey(string(data[:i]))
	if !ok {
		return nil, fmt.Errorf("entry for %q has a malformed key header", key)
	}
	if stored != key {
		return nil, ErrNotFound
	}
	return data[i+1:], nil
}

// Set writes value for key through a temporary file and rename.
func (f *Filesystem) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	size := entrySize(key, value)
	used := f.used - f.sizes[key] + size
	if !fits(used, f.quota) {
		return ErrQuotaExceeded
	}

	tmp, err := f.bfs.TempFile(f.root, tempPrefix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	header := encodeKey(key) + "\n"
	if _, err := tmp.Write(append([]byte(header), value...)); err != nil {
		_ = tmp.Close()
		_ = f.bfs.Remove(tmpName)
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = f.bfs.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := f.bfs.Rename(tmpName, f.pathFor(key)); err != nil {
		_ = f.bfs.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file for %q: %w", key, err)
	}

	f.sizes[key] = size
	f.used = used
	return nil
}

// Delete removes the file for key.
func (f *Filesystem) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.bfs.Remove(f.pathFor(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}

	f.used -= f.sizes[key]
	delete(f.sizes, key)
	return nil
}

// Keys lists the stored keys. The listing also resynchronizes quota
// accounting with whatever is actually on the filesystem.
func (f *Filesystem) Keys(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.rescan(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(f.sizes))
	for k := range f.sizes {
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear removes every file the medium wrote, including abandoned temporary
// files. Other files under root are left alone.
func (f *Filesystem) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	infos, err := f.bfs.ReadDir(f.root)
	if err != nil {
		return fmt.Errorf("failed to list %q: %w", f.root, err)
	}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if !strings.HasPrefix(info.Name(), tempPrefix) {
			if _, _, ok := f.readKey(info.Name()); !ok {
				continue
			}
		}
		if err := f.bfs.Remove(path.Join(f.root, info.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %q: %w", info.Name(), err)
		}
	}

	f.sizes = make(map[string]int64)
	f.used = 0
	return nil
}

// Used returns the number of bytes currently charged against the quota.
func (f *Filesystem) Used() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used
}
