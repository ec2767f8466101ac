package docstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MaxChen228/Linker-sub001/pkg/logger"
	"go.uber.org/zap"
)

type BackupInfo struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// BackupNow 手动为当前主文件做一次备份，返回备份文件路径
func (s *Store) BackupNow(ctx context.Context) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()

	if _, err := os.Stat(s.opts.Path); err != nil {
		return "", fmt.Errorf("backup %s: nothing to back up: %w", s.opts.Collection, err)
	}
	return s.createBackupLocked(ctx)
}

// ListBackups 按新到旧列出现有备份
func (s *Store) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	backups, err := s.listBackupsLocked()
	if err != nil {
		return nil, err
	}
	// listBackupsLocked 返回旧到新，对外新的在前
	for i, j := 0, len(backups)-1; i < j; i, j = i+1, j-1 {
		backups[i], backups[j] = backups[j], backups[i]
	}
	return backups, nil
}

// RestoreFromBackup 先完整校验备份内容（解析 + 迁移 + 逐条校验），
// 通过后才原子覆盖主文件
func (s *Store) RestoreFromBackup(ctx context.Context, backupPath string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("restore %s: %w", s.opts.Collection, err)
	}
	if _, err := s.parseAndValidate(data); err != nil {
		return fmt.Errorf("restore %s: backup rejected: %w", s.opts.Collection, err)
	}

	return s.writeAtomic(data)
}

func (s *Store) createBackupLocked(ctx context.Context) (string, error) {
	dst := s.backupName(s.now())
	if err := copyFile(s.opts.Path, dst); err != nil {
		return "", err
	}

	if err := s.pruneLocked(); err != nil {
		return "", err
	}

	// 镜像失败只告警，绝不拖垮本次写入
	if s.opts.Mirror != nil {
		if err := s.opts.Mirror.UploadFile(ctx, filepath.Base(dst), dst, "application/json"); err != nil {
			logger.Log.Warn("备份镜像上传失败",
				zap.String("collection", s.opts.Collection),
				zap.String("file", dst),
				zap.Error(err))
		}
	}

	return dst, nil
}

// backupName 生成 <name>.bak_<YYYYMMDD_HHMMSS><ext>，同秒冲突时追加序号
func (s *Store) backupName(ts time.Time) string {
	dir := filepath.Dir(s.opts.Path)
	base := filepath.Base(s.opts.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stamp := ts.Format("20060102_150405")

	name := filepath.Join(dir, fmt.Sprintf("%s.bak_%s%s", stem, stamp, ext))
	for n := 1; ; n++ {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name
		}
		name = filepath.Join(dir, fmt.Sprintf("%s.bak_%s_%d%s", stem, stamp, n, ext))
	}
}

// listBackupsLocked 返回旧到新排序的备份（按修改时间，再按文件名）
func (s *Store) listBackupsLocked() ([]BackupInfo, error) {
	dir := filepath.Dir(s.opts.Path)
	base := filepath.Base(s.opts.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	matches, err := filepath.Glob(filepath.Join(dir, stem+".bak_*"+ext))
	if err != nil {
		return nil, err
	}

	var backups []BackupInfo
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{Path: m, ModTime: info.ModTime(), Size: info.Size()})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].Path < backups[j].Path
		}
		return backups[i].ModTime.Before(backups[j].ModTime)
	})
	return backups, nil
}

// pruneLocked 超出保留数量时从最旧的开始删
func (s *Store) pruneLocked() error {
	backups, err := s.listBackupsLocked()
	if err != nil {
		return err
	}
	for len(backups) > s.opts.BackupRetention {
		if err := os.Remove(backups[0].Path); err != nil {
			return err
		}
		backups = backups[1:]
	}
	return nil
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
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
