package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// fixture lays out a fake data directory and returns Params for it.
func fixture(t *testing.T) Params {
	t.Helper()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "adminlog.db"), "sqlite bytes")
	writeFile(t, filepath.Join(src, "protos", "guns.yml"), "- id: Pistol\n")
	writeFile(t, filepath.Join(src, "protos", "sub", "hats.yml"), "- id: Hat\n")
	writeFile(t, filepath.Join(src, "locale.yml"), "sandbox-enabled: on\n")
	writeFile(t, filepath.Join(src, "game.yml"), "web_port: 9000\n")

	flushed := false
	t.Cleanup(func() {
		if !flushed {
			t.Error("admin log was not flushed before copying")
		}
	})
	return Params{
		Dir:  filepath.Join(src, "archives"),
		Name: "Test Station",
		AccountsSnapshot: func(dst string) error {
			return os.WriteFile(dst, []byte("bolt bytes"), 0644)
		},
		AdminLogPath:  filepath.Join(src, "adminlog.db"),
		AdminLogFlush: func() error { flushed = true; return nil },
		PrototypeDir:  filepath.Join(src, "protos"),
		LocaleFile:    filepath.Join(src, "locale.yml"),
		ConfPath:      filepath.Join(src, "game.yml"),
		Accounts:      3,
		Sandbox:       true,
	}
}

func TestCreateAndReadManifest(t *testing.T) {
	p := fixture(t)
	path, err := Create(p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Name != "Test Station" || m.Accounts != 3 || !m.Sandbox {
		t.Errorf("manifest = %+v", m)
	}
	want := map[string]string{
		"data/station.bolt":               "accounts",
		"data/adminlog.db":                "adminlog",
		"content/prototypes/guns.yml":     "prototype",
		"content/prototypes/sub/hats.yml": "prototype",
		"content/locale.yml":              "locale",
		"conf/game.yml":                   "conf",
	}
	if len(m.Files) != len(want) {
		t.Errorf("files = %v", m.Files)
	}
	for name, typ := range want {
		if m.Files[name].Type != typ {
			t.Errorf("%s type = %q, want %q", name, m.Files[name].Type, typ)
		}
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	p := fixture(t)
	path, err := Create(p)
	if err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "game.yml"), "web_port: 1234\n")
	res, err := Restore(RestoreParams{
		ArchivePath:   path,
		AccountsDest:  filepath.Join(dst, "data", "station.bolt"),
		AdminLogDest:  filepath.Join(dst, "data", "adminlog.db"),
		PrototypeDest: filepath.Join(dst, "protos"),
		ConfDest:      filepath.Join(dst, "game.yml"),
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.FilesRestored != 4 {
		t.Errorf("FilesRestored = %d", res.FilesRestored)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "game.yml") {
		t.Errorf("warnings = %v", res.Warnings)
	}

	checks := map[string]string{
		"data/station.bolt":   "bolt bytes",
		"data/adminlog.db":    "sqlite bytes",
		"protos/sub/hats.yml": "- id: Hat\n",
		"game.yml":            "web_port: 1234\n",
	}
	for rel, want := range checks {
		got, err := os.ReadFile(filepath.Join(dst, rel))
		if err != nil || string(got) != want {
			t.Errorf("%s = %q, %v", rel, got, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "locale.yml")); !os.IsNotExist(err) {
		t.Error("empty destination should be skipped")
	}

	res, err = Restore(RestoreParams{ArchivePath: path, ConfDest: filepath.Join(dst, "game.yml"), OverwriteConf: true})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(filepath.Join(dst, "game.yml"))
	if string(got) != "web_port: 9000\n" || res.FilesRestored != 1 {
		t.Errorf("overwrite: %q, restored %d", got, res.FilesRestored)
	}
}

func TestRestoreRejectsCorruptArchive(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.tar.gz")
	writeFile(t, bad, "not gzip")
	if _, err := Restore(RestoreParams{ArchivePath: bad}); err == nil {
		t.Error("expected an error for a corrupt archive")
	}
}

// withExtraMember copies the archive at src to a new file with one more
// regular file appended.
func withExtraMember(t *testing.T, src, name, content string) string {
	t.Helper()
	in, err := os.Open(src)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	gr, err := gzip.NewReader(in)
	if err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "tampered.tar.gz")
	out, err := os.Create(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := io.Copy(tw, tr); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return dst
}

func TestRestoreRejectsUnlistedMembers(t *testing.T) {
	path, err := Create(fixture(t))
	if err != nil {
		t.Fatal(err)
	}
	tampered := withExtraMember(t, path, "content/prototypes/extra.yml", "- id: Contraband\n")

	dst := t.TempDir()
	_, err = Restore(RestoreParams{
		ArchivePath:   tampered,
		AccountsDest:  filepath.Join(dst, "station.bolt"),
		PrototypeDest: filepath.Join(dst, "protos"),
	})
	if err == nil || !strings.Contains(err.Error(), "not listed") {
		t.Fatalf("Restore err = %v", err)
	}
	for _, rel := range []string{"station.bolt", "protos"} {
		if _, err := os.Stat(filepath.Join(dst, rel)); !os.IsNotExist(err) {
			t.Errorf("%s should not be restored from a tampered archive", rel)
		}
	}
}

func TestListAndPrune(t *testing.T) {
	p := fixture(t)
	var paths []string
	for i := 0; i < 3; i++ {
		path, err := Create(p)
		if err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
		time.Sleep(5 * time.Millisecond)
	}

	list, err := List(p.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].Path != paths[2] || list[0].Accounts != 3 {
		t.Fatalf("list = %+v", list)
	}

	removed, err := Prune(p.Dir, 1)
	if err != nil || removed != 2 {
		t.Fatalf("Prune = %d, %v", removed, err)
	}
	list, _ = List(p.Dir)
	if len(list) != 1 || list[0].Path != paths[2] {
		t.Errorf("after prune = %+v", list)
	}
	if n, _ := Prune(p.Dir, 0); n != 0 {
		t.Error("keep 0 should remove nothing")
	}
}
