package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 每次读取前进一秒，保证备份文件名不同秒
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// 测试用校验：记录必须是含 "ok": true 的对象
func requireOK(index int, record json.RawMessage) error {
	var m map[string]any
	if err := json.Unmarshal(record, &m); err != nil {
		return fmt.Errorf("decode: %v", err)
	}
	if ok, _ := m["ok"].(bool); !ok {
		return fmt.Errorf("record is not ok")
	}
	return nil
}

func newTestStore(t *testing.T, mutate func(*Options)) *Store {
	t.Helper()
	opts := Options{
		Path:            filepath.Join(t.TempDir(), "col.json"),
		Collection:      "test_collection",
		CurrentVersion:  "3.0",
		BackupRetention: 3,
		LockTimeout:     200 * time.Millisecond,
		Validate:        requireOK,
	}
	if mutate != nil {
		mutate(&opts)
	}
	s := New(opts)
	s.now = newFakeClock().Now
	return s
}

func record(ok bool) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"ok": %v}`, ok))
}

func TestLoadMissingFileReturnsFreshDocument(t *testing.T) {
	s := newTestStore(t, nil)

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.0", doc.Version)
	assert.Empty(t, doc.Data)
	// 读取不会无中生有地建文件
	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestSaveLoadRoundtrip(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	in := &Document{Data: []json.RawMessage{record(true), record(true)}}
	require.NoError(t, s.Save(ctx, in))

	// 版本与更新时间由存储层盖章
	assert.Equal(t, "3.0", in.Version)
	assert.False(t, in.LastUpdated.IsZero())

	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.0", out.Version)
	assert.Len(t, out.Data, 2)
}

func TestSaveRejectsInvalidRecordAndLeavesFileUntouched(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Document{Data: []json.RawMessage{record(true)}}))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	err = s.Save(ctx, &Document{Data: []json.RawMessage{record(true), record(false)}})
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrValidationFailed)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadCorruptFile(t *testing.T) {
	s := newTestStore(t, nil)

	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0644))
	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrCorruptDocument)
}

func TestLoadUnrecognizableShape(t *testing.T) {
	s := newTestStore(t, nil)

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"something": "else"}`), 0644))
	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrCorruptDocument)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	s := newTestStore(t, nil)

	require.NoError(t, s.Save(context.Background(), &Document{Data: []json.RawMessage{record(true)}}))
	_, err := os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestBackupRotation(t *testing.T) {
	s := newTestStore(t, nil) // retention 3
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		doc := &Document{Data: []json.RawMessage{record(true)}}
		require.NoError(t, s.Save(ctx, doc))
	}

	backups, err := s.ListBackups(ctx)
	require.NoError(t, err)
	assert.Len(t, backups, 3)

	// 对外新的在前
	for i := 1; i < len(backups); i++ {
		assert.True(t, !backups[i-1].ModTime.Before(backups[i].ModTime))
	}
}

func TestBackupNow(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	// 没有主文件时无从备份
	_, err := s.BackupNow(ctx)
	require.Error(t, err)

	require.NoError(t, s.Save(ctx, &Document{Data: []json.RawMessage{record(true)}}))
	path, err := s.BackupNow(ctx)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, filepath.Base(path), ".bak_")
}

func TestRestoreFromBackup(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Document{Data: []json.RawMessage{record(true)}}))
	// 第二次写入会把第一版存进备份
	require.NoError(t, s.Save(ctx, &Document{Data: []json.RawMessage{record(true), record(true)}}))

	backups, err := s.ListBackups(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, backups)

	require.NoError(t, s.RestoreFromBackup(ctx, backups[len(backups)-1].Path))
	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Data, 1)
}

func TestRestoreRejectsCorruptBackup(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	bad := filepath.Join(filepath.Dir(s.Path()), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0644))

	err := s.RestoreFromBackup(ctx, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrCorruptDocument)
}

func TestLockTimeout(t *testing.T) {
	s := newTestStore(t, func(o *Options) { o.LockTimeout = 50 * time.Millisecond })

	// 占住锁不放
	require.NoError(t, s.acquire(context.Background()))
	defer s.release()

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrLockTimeout)
}

func TestLockRespectsContextCancellation(t *testing.T) {
	s := newTestStore(t, func(o *Options) { o.LockTimeout = 10 * time.Second })

	require.NoError(t, s.acquire(context.Background()))
	defer s.release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadMigratesOldVersion(t *testing.T) {
	reg := NewMigrationRegistry()
	reg.Register("1.0", "3.0", func(raw any) (any, error) {
		arr, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array")
		}
		return map[string]any{"data": arr}, nil
	})

	s := newTestStore(t, func(o *Options) {
		o.Migrations = reg
		o.DetectVersion = func(raw any) string {
			if _, ok := raw.([]any); ok {
				return "1.0"
			}
			return ""
		}
	})

	require.NoError(t, os.WriteFile(s.Path(), []byte(`[{"ok": true}]`), 0644))

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.0", doc.Version)
	require.NotNil(t, doc.MigratedAt)
	assert.Len(t, doc.Data, 1)
}

type fakeMirror struct {
	mu    sync.Mutex
	names []string
}

func (m *fakeMirror) UploadFile(ctx context.Context, name, localPath, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	return nil
}

func TestBackupUploadsToMirror(t *testing.T) {
	mirror := &fakeMirror{}
	s := newTestStore(t, func(o *Options) { o.Mirror = mirror })
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Document{Data: []json.RawMessage{record(true)}}))
	require.NoError(t, s.Save(ctx, &Document{Data: []json.RawMessage{record(true)}}))

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	require.Len(t, mirror.names, 1)
	assert.Contains(t, mirror.names[0], ".bak_")
}
