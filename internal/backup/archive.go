package backup

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// manifest is written alongside the database file inside every
// archive, mirroring the teacher's BackupMetadata (spec §4.1/§4.7:
// the backup collaborator's contract is opaque, but a recoverable
// archive needs to record what it backed up and when).
type manifest struct {
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	Database  string    `json:"database"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// buildArchive tars+gzips the database file and its manifest into
// archivePath. dbPath must already be a quiesced, consistent copy of
// the store file (the caller is responsible for that).
func buildArchive(archivePath, dbPath string, label string) (manifest, error) {
	checksum, size, err := sha256File(dbPath)
	if err != nil {
		return manifest{}, fmt.Errorf("backup: checksum database: %w", err)
	}

	m := manifest{Label: label, CreatedAt: time.Now().UTC(), Database: filepath.Base(dbPath), SizeBytes: size, Checksum: checksum}

	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return manifest{}, fmt.Errorf("backup: create archive: %w", err)
	}
	defer archiveFile.Close()

	gzw := gzip.NewWriter(archiveFile)
	defer gzw.Close()
	tw := tar.NewWriter(gzw)
	defer tw.Close()

	if err := addFileToArchive(tw, dbPath, m.Database); err != nil {
		return manifest{}, fmt.Errorf("backup: add database to archive: %w", err)
	}

	blob, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return manifest{}, fmt.Errorf("backup: encode manifest: %w", err)
	}
	if err := addBytesToArchive(tw, "manifest.json", blob); err != nil {
		return manifest{}, fmt.Errorf("backup: add manifest to archive: %w", err)
	}

	return m, nil
}

func addFileToArchive(tw *tar.Writer, path, nameInArchive string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{Name: nameInArchive, Size: info.Size(), Mode: int64(info.Mode()), ModTime: info.ModTime()}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func addBytesToArchive(tw *tar.Writer, nameInArchive string, data []byte) error {
	header := &tar.Header{Name: nameInArchive, Size: int64(len(data)), Mode: 0644, ModTime: time.Now()}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

func sha256File(path string) (checksum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), info.Size(), nil
}
