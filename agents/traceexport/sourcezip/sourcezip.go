/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package sourcezip packages the source files of a traced program into a
// content addressed zip archive.
package sourcezip

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/klauspost/compress/zip"
)

// epoch is the modification time stamped on every entry so identical inputs
// produce identical archives.
var epoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

type entry struct {
	path string // absolute
	name string // inside the archive
}

// Hash returns the content hash of files without writing anything.
func Hash(files []string) (string, error) {
	entries, err := resolve(files)
	if err != nil {
		return "", err
	}
	return hashEntries(entries)
}

// Package hashes files and writes them to <outputDir>/<hash>.zip. Paths are
// de-duplicated and sorted first, so the hash only depends on the set of files
// and their contents. An archive that already exists is reused.
func Package(ctx context.Context, files []string, outputDir string) (hash, archivePath string, err error) {
	entries, err := resolve(files)
	if err != nil {
		return "", "", err
	}
	hash, err = hashEntries(entries)
	if err != nil {
		return "", "", err
	}

	archivePath = filepath.Join(outputDir, hash+".zip")
	if _, err := os.Stat(archivePath); err == nil {
		clog.FromContext(ctx).Debug("Reusing source archive", "path", archivePath)
		return hash, archivePath, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", "", fmt.Errorf("checking %s: %w", archivePath, err)
	}

	if err := writeArchive(entries, outputDir, archivePath); err != nil {
		return "", "", err
	}
	clog.FromContext(ctx).Info("Packaged source archive", "path", archivePath, "files", len(entries))
	return hash, archivePath, nil
}

// resolve cleans, de-duplicates and sorts files and names each entry relative
// to their common directory.
func resolve(files []string) ([]entry, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", f, err)
		}
		paths = append(paths, abs)
	}
	slices.Sort(paths)
	paths = slices.Compact(paths)

	root := commonDir(paths)
	entries := make([]entry, 0, len(paths))
	for _, p := range paths {
		name, err := filepath.Rel(root, p)
		if err != nil {
			return nil, fmt.Errorf("relativizing %s: %w", p, err)
		}
		entries = append(entries, entry{path: p, name: filepath.ToSlash(name)})
	}
	return entries, nil
}

func commonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	dir := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		for !strings.HasPrefix(p, dir+string(filepath.Separator)) && dir != filepath.Dir(dir) {
			dir = filepath.Dir(dir)
		}
	}
	return dir
}

func hashEntries(entries []entry) (string, error) {
	h := sha256.New()
	for _, e := range entries {
		f, err := os.Open(e.path)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", e.path, err)
		}
		fmt.Fprintf(h, "%s\x00", e.name)
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", e.path, err)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeArchive writes to a temporary file and renames it into place so
// concurrent packagers never observe a partial archive.
func writeArchive(entries []entry, outputDir, archivePath string) error {
	tmp, err := os.CreateTemp(outputDir, ".sourcezip-*")
	if err != nil {
		return fmt.Errorf("creating temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	for _, e := range entries {
		if err := add(zw, e); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("finishing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), archivePath); err != nil {
		return fmt.Errorf("moving archive into place: %w", err)
	}
	return nil
}

func add(zw *zip.Writer, e entry) error {
	f, err := os.Open(e.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", e.path, err)
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     e.name,
		Method:   zip.Deflate,
		Modified: epoch,
	})
	if err != nil {
		return fmt.Errorf("adding %s: %w", e.name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("compressing %s: %w", e.name, err)
	}
	return nil
}
