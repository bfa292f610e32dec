package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
)

var errExtractLimit = errors.New("extracted size limit exceeded")

// ArchiveExtractor unpacks uploaded zips and lists candidate source files.
type ArchiveExtractor struct {
	// ScratchRoot holds one workspace per extraction.
	ScratchRoot string
	// MaxBytes caps the total uncompressed size written to disk.
	MaxBytes int64
}

func NewArchiveExtractor(scratchRoot string, maxBytes int64) *ArchiveExtractor {
	return &ArchiveExtractor{ScratchRoot: scratchRoot, MaxBytes: maxBytes}
}

// Extract unpacks data into a new workspace. The returned cleanup removes the
// workspace and is safe to call whatever the error.
func (e *ArchiveExtractor) Extract(data []byte) ([]domain.CandidateFile, func(), error) {
	ws, err := NewWorkspace(e.ScratchRoot)
	if err != nil {
		return nil, func() {}, err
	}
	files, err := e.ExtractTo(data, ws.Dir)
	return files, ws.Cleanup, err
}

// ExtractTo writes every entry of the zip in data under dir, then walks dir for
// supported source files. An archive without candidates yields an empty list.
func (e *ArchiveExtractor) ExtractTo(data []byte, dir string) ([]domain.CandidateFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArchiveExtraction, err)
	}

	remaining := e.MaxBytes
	if remaining <= 0 {
		remaining = math.MaxInt64 - 1
	}
	for _, f := range zr.File {
		target, ok := entryPath(dir, f.Name)
		if !ok {
			log.Printf("archive skip entry=%q reason=outside_root", f.Name)
			continue
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrArchiveExtraction, err)
			}
			continue
		case !mode.IsRegular():
			log.Printf("archive skip entry=%q reason=not_regular mode=%s", f.Name, mode)
			continue
		}
		n, err := writeEntry(f, target, remaining)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrArchiveExtraction, f.Name, err)
		}
		remaining -= n
	}

	return Enumerate(dir)
}

// entryPath maps a zip entry name into dir, refusing names that escape it.
func entryPath(dir, name string) (string, bool) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || path.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", false
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), true
}

func writeEntry(f *zip.File, target string, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if n > limit {
		return n, errExtractLimit
	}
	return n, nil
}

// Enumerate walks root in lexical order and returns supported source files,
// never descending into excluded directories.
func Enumerate(root string) ([]domain.CandidateFile, error) {
	var out []domain.CandidateFile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && domain.IsExcludedDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !domain.IsSupportedFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, domain.CandidateFile{
			AbsPath: p,
			RelPath: filepath.ToSlash(rel),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk: %v", domain.ErrArchiveExtraction, err)
	}
	return out, nil
}
