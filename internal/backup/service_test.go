package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	objects map[string]objectInfo
	uploads int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{objects: make(map[string]objectInfo)}
}

func (f *fakeBackend) upload(ctx context.Context, key string, body *os.File) error {
	info, err := body.Stat()
	if err != nil {
		return err
	}
	f.objects[key] = objectInfo{Key: key, Size: info.Size()}
	f.uploads++
	return nil
}

func (f *fakeBackend) list(ctx context.Context, prefix string) ([]objectInfo, error) {
	var out []objectInfo
	for k, v := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeBackend) delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newTestService(t *testing.T, be backend, cfg Config) *Service {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "arbihawk.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("fake sqlite contents"), 0644))
	cfg.DBPath = dbPath
	cfg.StagingDir = t.TempDir()
	return newWithBackend(cfg, be, zerolog.Nop())
}

func TestBackupUploadsArchiveAndReturnsKey(t *testing.T) {
	be := newFakeBackend()
	svc := newTestService(t, be, Config{})

	key, err := svc.Backup(context.Background(), "pre_training")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, 1, be.uploads)
}

func TestBackupSanitizesPathLikeLabels(t *testing.T) {
	be := newFakeBackend()
	svc := newTestService(t, be, Config{})

	_, err := svc.Backup(context.Background(), "/var/lib/arbihawk/arbihawk.db")
	require.NoError(t, err)
	assert.Equal(t, "arbihawk", sanitizeLabel("/var/lib/arbihawk/arbihawk.db"))
}

func TestBackupRemovesLocalStagingFileAfterUpload(t *testing.T) {
	be := newFakeBackend()
	svc := newTestService(t, be, Config{})

	_, err := svc.Backup(context.Background(), "manual")
	require.NoError(t, err)

	entries, err := os.ReadDir(svc.cfg.StagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRotateKeepsMinimumRegardlessOfAge(t *testing.T) {
	be := newFakeBackend()
	svc := newTestService(t, be, Config{RetentionDays: 1, MinToKeep: 3})

	old := time.Now().AddDate(0, 0, -30)
	for i := 0; i < 3; i++ {
		key := svc.cfg.KeyPrefix + old.Format("20060102-150405") + ".tar.gz"
		be.objects[key] = objectInfo{Key: key, Size: 10}
		old = old.Add(time.Second)
	}

	deleted, err := svc.Rotate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestRotateDeletesArchivesOlderThanRetention(t *testing.T) {
	be := newFakeBackend()
	svc := newTestService(t, be, Config{RetentionDays: 7, MinToKeep: 1})

	fresh := time.Now()
	stale := time.Now().AddDate(0, 0, -30)
	for _, ts := range []time.Time{fresh, stale, stale.Add(time.Second), stale.Add(2 * time.Second)} {
		key := svc.cfg.KeyPrefix + ts.Format("20060102-150405") + ".tar.gz"
		be.objects[key] = objectInfo{Key: key, Size: 10}
	}

	deleted, err := svc.Rotate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	remaining, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
