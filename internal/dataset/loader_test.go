package dataset

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/kg"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func newTestLoader(fs afero.Fs) *Loader {
	return NewLoader(fs, logger.Discard())
}

func TestLoadTriples(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/d/train2id.txt", "4\n0 1 0\n2 1 0\n\n0 1\n1 3 1 extra\n3 2 1\n")

	triples, err := newTestLoader(fs).LoadTriples("/d/train2id.txt")
	if err != nil {
		t.Fatalf("LoadTriples() error = %v", err)
	}

	want := []kg.Triple{
		{Head: 0, Relation: 0, Tail: 1},
		{Head: 2, Relation: 0, Tail: 1},
		{Head: 3, Relation: 1, Tail: 2},
	}
	if diff := cmp.Diff(want, triples); diff != "" {
		t.Errorf("LoadTriples() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTriples_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{"non-integer head", "1\nx 1 0\n", "line 2"},
		{"non-integer relation", "1\n0 1 r\n", "relation"},
		{"negative id", "1\n0 -1 0\n", "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFile(t, fs, "/split.txt", tt.content)

			_, err := newTestLoader(fs).LoadTriples("/split.txt")
			if err == nil {
				t.Fatal("LoadTriples() expected error")
			}
			if !errors.IsLoad(err) {
				t.Errorf("error should be a load error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) || !strings.Contains(err.Error(), "/split.txt") {
				t.Errorf("error %q should mention %q and the path", err, tt.wantSub)
			}
		})
	}
}

func TestLoadTriples_MissingFile(t *testing.T) {
	_, err := newTestLoader(afero.NewMemMapFs()).LoadTriples("/nope.txt")
	if !errors.IsLoad(err) {
		t.Errorf("LoadTriples(missing) error = %v, want load error", err)
	}
}

func TestLoadIDFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/entity2id.txt", "3\nAlice\t0\nBob Smith\t1\n/m/0x\t2\n")

	entries, err := newTestLoader(fs).LoadIDFile("/entity2id.txt")
	if err != nil {
		t.Fatalf("LoadIDFile() error = %v", err)
	}

	want := []Entry{{"Alice", 0}, {"Bob Smith", 1}, {"/m/0x", 2}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("LoadIDFile() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAnomaly(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/relation2anomaly.txt", "0 0.25\n2 1.5\n")
	l := newTestLoader(fs)

	scores, err := l.LoadAnomaly("/relation2anomaly.txt")
	if err != nil {
		t.Fatalf("LoadAnomaly() error = %v", err)
	}
	if diff := cmp.Diff(map[kg.Relation]float64{0: 0.25, 2: 1.5}, scores); diff != "" {
		t.Errorf("LoadAnomaly() mismatch (-want +got):\n%s", diff)
	}

	missing, err := l.LoadAnomaly("/absent.txt")
	if err != nil || len(missing) != 0 {
		t.Errorf("LoadAnomaly(missing) = %v, %v; want empty, nil", missing, err)
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/fb"
	writeFile(t, fs, filepath.Join(dir, "train2id.txt"), "2\n0 1 0\n2 3 1\n")
	writeFile(t, fs, filepath.Join(dir, "valid2id.txt"), "0\n")
	writeFile(t, fs, filepath.Join(dir, "3_test2id.txt"), "1\n0 3 0\n")
	writeFile(t, fs, filepath.Join(dir, "entity2id.txt"), "4\na 0\nb 1\nc 2\nd 3\n")
	writeFile(t, fs, filepath.Join(dir, "relation2id.txt"), "2\nlikes 0\nknows 1\n")

	ds, err := newTestLoader(fs).Load("fb", PathsFromDir(dir, "3_"), Test, Train, Valid)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := len(ds.Splits[Test]); got != 1 {
		t.Errorf("test split has %d triples, want 1", got)
	}
	if got := ds.Universe().Len(); got != 4 {
		t.Errorf("Universe().Len() = %d, want 4", got)
	}
	if len(ds.Relations) != 2 {
		t.Errorf("Relations = %v, want 2 entries", ds.Relations)
	}
	if ds.AnomalyOf(1) != 0 {
		t.Errorf("AnomalyOf(1) = %v, want default 0", ds.AnomalyOf(1))
	}
}

func TestLoad_UniverseFallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/t.txt", "1\n5 7 0\n")

	ds, err := newTestLoader(fs).Load("x", Paths{Test: "/t.txt"}, Test)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]kg.Entity{5, 7}, ds.Entities); diff != "" {
		t.Errorf("Entities mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_UnknownSplit(t *testing.T) {
	_, err := newTestLoader(afero.NewMemMapFs()).Load("x", Paths{}, "dev")
	if !errors.IsConfig(err) {
		t.Errorf("Load(dev) error = %v, want config error", err)
	}
}

func TestFingerprint(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a.txt", "1\n0 1 0\n")
	writeFile(t, fs, "/b.txt", "1\n0 1 1\n")
	l := newTestLoader(fs)

	a1, _ := l.Fingerprint("/a.txt")
	a2, _ := l.Fingerprint("/a.txt")
	b, _ := l.Fingerprint("/b.txt")

	if a1 != a2 || a1 == b || len(a1) != 16 {
		t.Errorf("Fingerprint() = %s, %s, %s", a1, a2, b)
	}
}

func TestPaths(t *testing.T) {
	p := PathsFromDir("/d", "2_")
	if p.Test != filepath.Join("/d", "2_test2id.txt") || p.Train != filepath.Join("/d", "train2id.txt") {
		t.Errorf("PathsFromDir() = %+v", p)
	}

	o := p.Override(Paths{Train: "/other/train.txt"})
	if o.Train != "/other/train.txt" || o.Test != p.Test {
		t.Errorf("Override() = %+v", o)
	}

	if got, _ := p.Split(OriginalTest); got != filepath.Join("/d", "test2id.txt") {
		t.Errorf("Split(original_test) = %q", got)
	}

	if _, err := p.Split("dev"); err == nil {
		t.Error("Split(dev) should fail")
	}
}
