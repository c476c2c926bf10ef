package driver

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"qualflow/internal/diag"
	"qualflow/internal/source"
)

// Current schema version - increment when DiskPayload format changes
const diskCacheSchemaVersion uint16 = 1

// DiskCache stores the diagnostics of finished runs by Digest.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiskPayload is one cached run. Spans refer to Files by index; -1 marks a
// span without a file.
type DiskPayload struct {
	Schema  uint16
	Checker string
	Files   []string
	Diags   []cachedDiagnostic
}

type cachedSpan struct {
	File       int
	Start, End uint32
}

type cachedNote struct {
	Span cachedSpan
	Msg  string
}

type cachedDiagnostic struct {
	Severity uint8
	Code     uint16
	Message  string
	Primary  cachedSpan
	Notes    []cachedNote
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt uses dir as the cache root.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "runs", hex.EncodeToString(key[:])+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key Digest, payload *DiskPayload) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads and deserializes a payload from the disk cache. Entries of an
// older schema are misses.
func (c *DiskCache) Get(key Digest, out *DiskPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	return out.Schema == diskCacheSchemaVersion, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// encodePayload records diags with file paths from fs.
func encodePayload(checkerName string, fs *source.FileSet, diags []diag.Diagnostic) *DiskPayload {
	p := &DiskPayload{Schema: diskCacheSchemaVersion, Checker: checkerName}
	index := make(map[source.FileID]int)
	span := func(sp source.Span) cachedSpan {
		f := fs.Get(sp.File)
		if f == nil {
			return cachedSpan{File: -1}
		}
		i, ok := index[sp.File]
		if !ok {
			i = len(p.Files)
			index[sp.File] = i
			p.Files = append(p.Files, f.Path)
		}
		return cachedSpan{File: i, Start: sp.Start, End: sp.End}
	}
	for _, d := range diags {
		cd := cachedDiagnostic{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Message:  d.Message,
			Primary:  span(d.Primary),
		}
		for _, n := range d.Notes {
			cd.Notes = append(cd.Notes, cachedNote{Span: span(n.Span), Msg: n.Msg})
		}
		p.Diags = append(p.Diags, cd)
	}
	return p
}

// decodePayload restores diagnostics into bag. It fails when a recorded
// file is not loaded in fs.
func decodePayload(p *DiskPayload, fs *source.FileSet, bag *diag.Bag) bool {
	ids := make([]source.FileID, len(p.Files))
	for i, path := range p.Files {
		id, ok := fs.GetLatest(path)
		if !ok {
			return false
		}
		ids[i] = id
	}
	span := func(cs cachedSpan) source.Span {
		if cs.File < 0 || cs.File >= len(ids) {
			return source.Span{}
		}
		return source.Span{File: ids[cs.File], Start: cs.Start, End: cs.End}
	}
	for _, cd := range p.Diags {
		d := diag.Diagnostic{
			Severity: diag.Severity(cd.Severity),
			Code:     diag.Code(cd.Code),
			Message:  cd.Message,
			Primary:  span(cd.Primary),
		}
		for _, n := range cd.Notes {
			d.Notes = append(d.Notes, diag.Note{Span: span(n.Span), Msg: n.Msg})
		}
		bag.Add(d)
	}
	return true
}
