package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// RestoreParams says where each part of an archive goes. Empty destinations
// are skipped. The server must not be running.
type RestoreParams struct {
	ArchivePath   string
	AccountsDest  string
	AdminLogDest  string
	PrototypeDest string
	LocaleDest    string
	ConfDest      string
	// OverwriteConf replaces an existing config file that differs from the
	// archived one. Otherwise the current file is kept and a warning added.
	OverwriteConf bool
}

// RestoreResult summarizes a completed restore.
type RestoreResult struct {
	Manifest      *Manifest
	FilesRestored int
	Warnings      []string
}

// Restore verifies every checksum in the archive and then copies its members
// to their destinations.
func Restore(p RestoreParams) (*RestoreResult, error) {
	tmpDir, err := os.MkdirTemp("", "station-restore-*")
	if err != nil {
		return nil, fmt.Errorf("restore: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	members, err := extract(p.ArchivePath, tmpDir)
	if err != nil {
		return nil, fmt.Errorf("restore: extract: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, memberManifest))
	if err != nil {
		return nil, fmt.Errorf("restore: %s not found in archive", memberManifest)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("restore: parse manifest: %w", err)
	}
	for _, name := range members {
		if _, listed := m.Files[name]; !listed && name != memberManifest {
			return nil, fmt.Errorf("restore: %s is not listed in the manifest", name)
		}
	}
	for name, entry := range m.Files {
		ok, err := checksumMatches(filepath.Join(tmpDir, filepath.FromSlash(name)), entry.SHA256)
		if err != nil {
			return nil, fmt.Errorf("restore: checksum %s: %w", name, err)
		}
		if !ok {
			return nil, fmt.Errorf("restore: checksum mismatch for %s, archive may be corrupt", name)
		}
	}

	res := &RestoreResult{Manifest: &m}
	restoreFile := func(member, dest string) error {
		src := filepath.Join(tmpDir, filepath.FromSlash(member))
		if dest == "" {
			return nil
		}
		if _, err := os.Stat(src); err != nil {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("restore: create dir for %s: %w", member, err)
		}
		if err := copyFile(src, dest); err != nil {
			return fmt.Errorf("restore: copy %s: %w", member, err)
		}
		res.FilesRestored++
		return nil
	}

	if err := restoreFile(memberAccounts, p.AccountsDest); err != nil {
		return nil, err
	}
	if err := restoreFile(memberAdminLog, p.AdminLogDest); err != nil {
		return nil, err
	}
	if err := restoreFile(memberLocale, p.LocaleDest); err != nil {
		return nil, err
	}

	protoSrc := filepath.Join(tmpDir, filepath.FromSlash(prefixProtos))
	if info, err := os.Stat(protoSrc); err == nil && info.IsDir() && p.PrototypeDest != "" {
		n, err := copyDir(protoSrc, p.PrototypeDest)
		if err != nil {
			return nil, fmt.Errorf("restore: copy prototypes: %w", err)
		}
		res.FilesRestored += n
	}

	if p.ConfDest != "" {
		src := filepath.Join(tmpDir, prefixConf, filepath.Base(p.ConfDest))
		if archived, err := os.ReadFile(src); err == nil {
			current, cerr := os.ReadFile(p.ConfDest)
			switch {
			case cerr == nil && bytes.Equal(current, archived):
			case cerr == nil && !p.OverwriteConf:
				res.Warnings = append(res.Warnings, fmt.Sprintf("kept current config %s, it differs from the archive", filepath.Base(p.ConfDest)))
			default:
				if err := restoreFile(prefixConf+"/"+filepath.Base(p.ConfDest), p.ConfDest); err != nil {
					return nil, err
				}
			}
		}
	}
	return res, nil
}

// extract unpacks the archive into destDir and returns the names of the
// regular files it wrote.
func extract(archivePath, destDir string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	var members []string
	root := filepath.Clean(destDir) + string(os.PathSeparator)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return members, nil
		}
		if err != nil {
			return nil, err
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, root) {
			return nil, fmt.Errorf("invalid archive entry: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}
			out, err := os.Create(target)
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return nil, err
			}
			if err := out.Close(); err != nil {
				return nil, err
			}
			members = append(members, path.Clean(hdr.Name))
		}
	}
}

func checksumMatches(path, want string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == want, nil
}

// copyDir copies every file under src into dst and returns the count.
func copyDir(src, dst string) (int, error) {
	count := 0
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		if err := copyFile(path, dest); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}
