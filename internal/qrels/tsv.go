package qrels

import (
	"bufio"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/kg"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// FileName returns the qrel file name of policy p, e.g. "fb_0_qrels_max.tsv".
func FileName(prefix string, p Policy) string {
	if prefix == "" {
		return fmt.Sprintf("qrels_%s.tsv", p)
	}
	return fmt.Sprintf("%s_qrels_%s.tsv", prefix, p)
}

// WriteTSV writes rows as "query_id\tentity_id\trelevance" lines. The file is
// written to a temporary sibling and renamed into place, so readers never see
// a partial file.
func WriteTSV(fs afero.Fs, path string, rows []Row) (err error) {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.WriteError(path, err)
	}

	tmp, err := afero.TempFile(fs, dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WriteError(path, err)
	}
	defer func() {
		if err != nil {
			_ = fs.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\n", r.QueryID, r.Entity, r.Relevance); err != nil {
			tmp.Close()
			return errors.WriteError(path, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return errors.WriteError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WriteError(path, err)
	}
	if err := fs.Rename(tmp.Name(), path); err != nil {
		return errors.WriteError(path, err)
	}
	return nil
}

// ReadTSV reads a qrel file. Fields may be separated by any whitespace and
// entity ids written as floats ("12.0") are accepted.
func ReadTSV(fs afero.Fs, path string) ([]Row, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.LoadError(path, err)
	}
	defer f.Close()

	var rows []Row
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, errors.LoadError(path, fmt.Errorf("line %d: want 3 fields, got %d", lineNo, len(fields)))
		}
		entity, err := ParseEntityID(fields[1])
		if err != nil {
			return nil, errors.LoadError(path, fmt.Errorf("line %d: %w", lineNo, err))
		}
		rel, err := strconv.ParseUint(fields[2], 10, 8)
		if err != nil || rel > uint64(Positive) {
			return nil, errors.LoadError(path, fmt.Errorf("line %d: invalid relevance %q", lineNo, fields[2]))
		}
		rows = append(rows, Row{QueryID: fields[0], Entity: entity, Relevance: Level(rel)})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.LoadError(path, err)
	}
	return rows, nil
}

// ParseEntityID parses a non-negative integer entity id, tolerating an
// integral float rendering such as "12.0".
func ParseEntityID(s string) (kg.Entity, error) {
	if v, err := strconv.ParseInt(s, 10, 32); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("invalid entity id %q", s)
		}
		return kg.Entity(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("invalid entity id %q", s)
	}
	return kg.Entity(f), nil
}

// Writer flushes a Result to one file per policy.
type Writer struct {
	fs     afero.Fs
	dir    string
	prefix string
}

// NewWriter creates a writer rooted at dir. A nil fs writes to the OS
// filesystem.
func NewWriter(fs afero.Fs, dir, prefix string) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Writer{fs: fs, dir: dir, prefix: prefix}
}

// Write flushes every policy of res and returns the written paths by policy.
func (w *Writer) Write(res *Result) (map[Policy]string, error) {
	paths := make(map[Policy]string, len(res.Policies))
	for _, p := range res.Policies {
		path := filepath.Join(w.dir, FileName(w.prefix, p))
		if err := WriteTSV(w.fs, path, res.Rows[p]); err != nil {
			return paths, err
		}
		paths[p] = path
	}
	return paths, nil
}
