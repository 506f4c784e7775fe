package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phrazzld/functest/internal/dbconn"
	"github.com/phrazzld/functest/internal/reference"
)

// dumpExtensions maps dump file extensions to engines.
var dumpExtensions = map[string]string{
	".pgdmp": dbconn.DriverPgsql,
	".sql":   dbconn.DriverMysql,
}

// Dump describes a cached dump file.
type Dump struct {
	Hash       string    `json:"hash"       yaml:"hash"`
	Engine     string    `json:"engine"     yaml:"engine"`
	File       string    `json:"file"       yaml:"file"`
	Size       int64     `json:"size"       yaml:"size"`
	ModTime    time.Time `json:"modified"   yaml:"modified"`
	References bool      `json:"references" yaml:"references"`
}

// Usable reports whether the dump can be restored.
func (d Dump) Usable() bool { return d.References }

// ListDumps returns the dumps under cacheDir sorted by hash. A missing dump
// directory yields no dumps.
func ListDumps(cacheDir string) ([]Dump, error) {
	dir := filepath.Join(cacheDir, DumpDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dump directory %s: %w", dir, err)
	}

	var dumps []Dump
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		hash, engine, ok := parseDumpName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}

		file := filepath.Join(dir, e.Name())
		dumps = append(dumps, Dump{
			Hash:       hash,
			Engine:     engine,
			File:       file,
			Size:       info.Size(),
			ModTime:    info.ModTime(),
			References: fileExists(reference.PathFor(file)),
		})
	}

	sort.Slice(dumps, func(i, j int) bool { return dumps[i].Hash < dumps[j].Hash })
	return dumps, nil
}

// RemoveDumps deletes cached dumps and their reference files. With no
// hashes every dump is removed. It returns the removed dumps.
func RemoveDumps(cacheDir string, hashes ...string) ([]Dump, error) {
	dumps, err := ListDumps(cacheDir)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		wanted[h] = true
	}

	var removed []Dump
	for _, d := range dumps {
		if len(wanted) > 0 && !wanted[d.Hash] {
			continue
		}
		for _, path := range []string{d.File, reference.PathFor(d.File)} {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return removed, fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}
		removed = append(removed, d)
	}
	return removed, nil
}

func parseDumpName(name string) (hash, engine string, ok bool) {
	ext := filepath.Ext(name)
	engine, ok = dumpExtensions[ext]
	if !ok || !strings.HasPrefix(name, "test_") {
		return "", "", false
	}
	hash = strings.TrimSuffix(strings.TrimPrefix(name, "test_"), ext)
	return hash, engine, hash != ""
}
