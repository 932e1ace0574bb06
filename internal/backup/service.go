package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// backend is the narrow surface this package needs from an
// S3-compatible object store, so tests can swap in a fake without
// touching real credentials or the network.
type backend interface {
	upload(ctx context.Context, key string, body *os.File) error
	list(ctx context.Context, prefix string) ([]objectInfo, error)
	delete(ctx context.Context, key string) error
}

type objectInfo struct {
	Key  string
	Size int64
}

// Config configures the backup Service.
type Config struct {
	DBPath        string
	StagingDir    string
	KeyPrefix     string // S3 object key prefix, defaults to "arbihawk-backup-"
	RetentionDays int    // 0 disables age-based rotation
	MinToKeep     int    // always keeps at least this many regardless of age, default 3
}

func (c *Config) applyDefaults() {
	if c.StagingDir == "" {
		c.StagingDir = filepath.Join(filepath.Dir(c.DBPath), "backup-staging")
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "arbihawk-backup-"
	}
	if c.MinToKeep <= 0 {
		c.MinToKeep = 3
	}
}

// Service is the backup collaborator (spec §4.1, §4.7, §4.8): it
// archives the store's database file and ships it to an
// S3-compatible bucket. It satisfies store.Backuper,
// modelversion.Backuper, and scheduler.Backuper, all of which share
// the shape Backup(ctx, string) (string, error) — the string argument
// is a free-form label embedded in the archive's manifest and is
// never required to be the literal database path, even though
// store.ResetX callers happen to pass one.
type Service struct {
	cfg Config
	be  backend
	log zerolog.Logger
}

// New constructs a Service backed by a real S3-compatible bucket.
func New(ctx context.Context, s3cfg ClientConfig, cfg Config, log zerolog.Logger) (*Service, error) {
	cfg.applyDefaults()
	client, err := newS3Client(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return newWithBackend(cfg, adaptedBackend{client}, log), nil
}

// adaptedBackend adapts s3Client's io.Reader-based upload to the
// *os.File signature backend expects, so tests can substitute a fake
// without importing the AWS SDK's interfaces.
type adaptedBackend struct{ client *s3Client }

func (a adaptedBackend) upload(ctx context.Context, key string, body *os.File) error {
	return a.client.upload(ctx, key, body)
}
func (a adaptedBackend) list(ctx context.Context, prefix string) ([]objectInfo, error) {
	return a.client.list(ctx, prefix)
}
func (a adaptedBackend) delete(ctx context.Context, key string) error {
	return a.client.delete(ctx, key)
}

func newWithBackend(cfg Config, be backend, log zerolog.Logger) *Service {
	cfg.applyDefaults()
	return &Service{cfg: cfg, be: be, log: log.With().Str("component", "backup").Logger()}
}

// Backup archives the database file and uploads it, returning the
// bucket key the archive was stored under.
func (s *Service) Backup(ctx context.Context, label string) (string, error) {
	if err := os.MkdirAll(s.cfg.StagingDir, 0755); err != nil {
		return "", fmt.Errorf("backup: create staging dir: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	archiveName := fmt.Sprintf("%s%s.tar.gz", s.cfg.KeyPrefix, timestamp)
	archivePath := filepath.Join(s.cfg.StagingDir, archiveName)
	defer os.Remove(archivePath)

	sanitizedLabel := sanitizeLabel(label)
	if _, err := buildArchive(archivePath, s.cfg.DBPath, sanitizedLabel); err != nil {
		return "", err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("backup: reopen archive: %w", err)
	}
	defer f.Close()

	if err := s.be.upload(ctx, archiveName, f); err != nil {
		return "", err
	}

	s.log.Info().Str("label", sanitizedLabel).Str("key", archiveName).Msg("backup uploaded")
	return archiveName, nil
}

// sanitizeLabel keeps the manifest's label human-readable even when
// the caller passed a filesystem path (store.ResetX does).
func sanitizeLabel(label string) string {
	base := filepath.Base(label)
	if base == "." || base == string(filepath.Separator) {
		return "manual"
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ListBackups returns every archive under this service's key prefix,
// newest first.
func (s *Service) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.be.list(ctx, s.cfg.KeyPrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := parseTimestamp(obj.Key, s.cfg.KeyPrefix)
		if !ok {
			continue
		}
		backups = append(backups, BackupInfo{Key: obj.Key, Timestamp: ts, SizeBytes: obj.Size})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// BackupInfo describes one archive in the bucket.
type BackupInfo struct {
	Key       string
	Timestamp time.Time
	SizeBytes int64
}

// Rotate deletes archives older than RetentionDays, always keeping at
// least MinToKeep regardless of age (teacher's
// internal/reliability/r2_backup_service.go RotateOldBackups).
func (s *Service) Rotate(ctx context.Context) (int, error) {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, fmt.Errorf("backup: list for rotation: %w", err)
	}
	if len(backups) <= s.cfg.MinToKeep || s.cfg.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	deleted := 0
	for i, b := range backups {
		if i < s.cfg.MinToKeep {
			continue
		}
		if b.Timestamp.Before(cutoff) {
			if err := s.be.delete(ctx, b.Key); err != nil {
				s.log.Warn().Err(err).Str("key", b.Key).Msg("failed to delete old backup")
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}

func parseTimestamp(key, prefix string) (time.Time, bool) {
	rest := strings.TrimPrefix(key, prefix)
	rest = strings.TrimSuffix(rest, ".tar.gz")
	t, err := time.Parse("20060102-150405", rest)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
