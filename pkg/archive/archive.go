package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive member names.
const (
	memberManifest = "manifest.json"
	memberAccounts = "data/station.bolt"
	memberAdminLog = "data/adminlog.db"
	memberLocale   = "content/locale.yml"
	prefixProtos   = "content/prototypes"
	prefixConf     = "conf"
)

// Manifest describes the contents of an archive.
type Manifest struct {
	Version   int                  `json:"version"`
	Server    string               `json:"server"`
	Timestamp string               `json:"timestamp"`
	Name      string               `json:"name"`
	Accounts  int                  `json:"accounts"`
	Sandbox   bool                 `json:"sandbox"`
	Files     map[string]FileEntry `json:"files"`
}

// FileEntry describes a single file within the archive.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	Type   string `json:"type"` // "accounts", "adminlog", "prototype", "locale", "conf"
}

// Params holds all inputs needed to create an archive.
type Params struct {
	Dir  string // Output directory
	Name string // Server name for the manifest

	AccountsSnapshot func(destPath string) error // Writes a consistent copy of the account store (nil = skip)
	AdminLogPath     string                      // SQLite admin log (empty = skip)
	AdminLogFlush    func() error                // Checkpoints the WAL before the copy (nil = skip)
	PrototypeDir     string                      // Extra prototype YAML (empty = skip)
	LocaleFile       string                      // Message overrides (empty = skip)
	ConfPath         string                      // Game config file (empty = skip)

	Accounts int
	Sandbox  bool
}

// Create writes a .tar.gz archive of the station's data and returns its path.
func Create(p Params) (string, error) {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", p.Dir, err)
	}
	path := filepath.Join(p.Dir, fmt.Sprintf("station-%s.tar.gz", time.Now().Format("20060102-150405.000000000")))

	tmpDir, err := os.MkdirTemp("", "station-archive-*")
	if err != nil {
		return "", fmt.Errorf("archive: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	m := Manifest{
		Version:   1,
		Server:    "GoStation",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Name:      p.Name,
		Accounts:  p.Accounts,
		Sandbox:   p.Sandbox,
		Files:     make(map[string]FileEntry),
	}

	// Stage the databases first so the tar only ever reads stable copies.
	staged := map[string]string{}
	if p.AccountsSnapshot != nil {
		dst := filepath.Join(tmpDir, "station.bolt")
		if err := p.AccountsSnapshot(dst); err != nil {
			return "", fmt.Errorf("archive: accounts snapshot: %w", err)
		}
		staged[memberAccounts] = dst
	}
	if p.AdminLogPath != "" {
		if p.AdminLogFlush != nil {
			if err := p.AdminLogFlush(); err != nil {
				return "", fmt.Errorf("archive: admin log checkpoint: %w", err)
			}
		}
		dst := filepath.Join(tmpDir, "adminlog.db")
		if err := copyFile(p.AdminLogPath, dst); err != nil {
			return "", fmt.Errorf("archive: copy admin log: %w", err)
		}
		staged[memberAdminLog] = dst
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", path, err)
	}
	defer out.Close()
	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	add := func(src, name, typ string) error {
		entry, err := addFileToTar(tw, src, name)
		if err != nil {
			return err
		}
		entry.Type = typ
		m.Files[name] = entry
		return nil
	}

	if src, ok := staged[memberAccounts]; ok {
		if err := add(src, memberAccounts, "accounts"); err != nil {
			return "", err
		}
	}
	if src, ok := staged[memberAdminLog]; ok {
		if err := add(src, memberAdminLog, "adminlog"); err != nil {
			return "", err
		}
	}
	if p.PrototypeDir != "" {
		if info, err := os.Stat(p.PrototypeDir); err == nil && info.IsDir() {
			entries, err := addDirToTar(tw, p.PrototypeDir, prefixProtos)
			if err != nil {
				return "", err
			}
			for k, v := range entries {
				v.Type = "prototype"
				m.Files[k] = v
			}
		}
	}
	if p.LocaleFile != "" {
		if _, err := os.Stat(p.LocaleFile); err == nil {
			if err := add(p.LocaleFile, memberLocale, "locale"); err != nil {
				return "", err
			}
		}
	}
	if p.ConfPath != "" {
		if _, err := os.Stat(p.ConfPath); err == nil {
			if err := add(p.ConfPath, prefixConf+"/"+filepath.Base(p.ConfPath), "conf"); err != nil {
				return "", err
			}
		}
	}

	// Manifest goes last so it can list every member.
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("archive: marshal manifest: %w", err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    memberManifest,
		Size:    int64(len(data)),
		Mode:    0644,
		ModTime: time.Now(),
	}); err != nil {
		return "", fmt.Errorf("archive: write manifest header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return "", fmt.Errorf("archive: write manifest: %w", err)
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("archive: close tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("archive: close gzip: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("archive: close %s: %w", path, err)
	}
	return path, nil
}

// addFileToTar adds srcPath under name, hashing it while writing.
func addFileToTar(tw *tar.Writer, srcPath, name string) (FileEntry, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: stat %s: %w", srcPath, err)
	}

	name = strings.ReplaceAll(name, "\\", "/")
	if err := tw.WriteHeader(&tar.Header{
		Name:    name,
		Size:    info.Size(),
		Mode:    0644,
		ModTime: info.ModTime(),
	}); err != nil {
		return FileEntry{}, fmt.Errorf("archive: header %s: %w", name, err)
	}

	h := sha256.New()
	n, err := io.Copy(tw, io.TeeReader(f, h))
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: write %s: %w", name, err)
	}
	return FileEntry{SHA256: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

func addDirToTar(tw *tar.Writer, srcDir, prefix string) (map[string]FileEntry, error) {
	entries := make(map[string]FileEntry)
	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := prefix + "/" + filepath.ToSlash(rel)
		entry, err := addFileToTar(tw, path, name)
		if err != nil {
			return err
		}
		entries[name] = entry
		return nil
	})
	return entries, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
