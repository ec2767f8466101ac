package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/util"
	"github.com/MaxChen228/Linker-sub001/pkg/monitoring"
	"github.com/MaxChen228/Linker-sub001/pkg/tracing"
)

// Document 是持久化的最小单元：版本号 + 更新时间 + 记录列表。
// 存储层不理解记录内容，记录语义由上层 repository 负责。
type Document struct {
	Version     string            `json:"version"`
	LastUpdated time.Time         `json:"last_updated"`
	MigratedAt  *time.Time        `json:"migrated_at,omitempty"`
	Data        []json.RawMessage `json:"data"`
}

// ValidateFunc 校验单条记录，存在 Error/Critical 级别问题时返回非 nil
type ValidateFunc func(index int, record json.RawMessage) error

// DetectFunc 从无版本标签的文档结构推断其历史版本，无法识别时返回空串
type DetectFunc func(raw any) string

// Mirror 把新产生的备份文件异地再存一份（如 MinIO），尽力而为
type Mirror interface {
	UploadFile(ctx context.Context, name, localPath, contentType string) error
}

type Options struct {
	Path            string
	Collection      string // 指标与日志里的集合名
	CurrentVersion  string
	BackupRetention int           // 默认 5
	LockTimeout     time.Duration // 默认 5s
	Migrations      *MigrationRegistry
	DetectVersion   DetectFunc
	Validate        ValidateFunc
	Mirror          Mirror
}

// Store 单文件文档存储：互斥锁、原子写、备份轮转
type Store struct {
	opts Options
	sem  chan struct{}
	now  func() time.Time // 测试注入时钟
}

func New(opts Options) *Store {
	if opts.BackupRetention <= 0 {
		opts.BackupRetention = 5
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	return &Store{
		opts: opts,
		sem:  make(chan struct{}, 1),
		now:  time.Now,
	}
}

func (s *Store) Path() string { return s.opts.Path }

// acquire 在超时内抢占存储锁，抢不到返回 ErrLockTimeout 而不是一直等
func (s *Store) acquire(ctx context.Context) error {
	timer := time.NewTimer(s.opts.LockTimeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: collection %s (%s)", util.ErrLockTimeout, s.opts.Collection, s.opts.LockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.sem
}

// Load 读出整份文档：文件不存在返回空白文档；
// 解析 → 迁移 → 校验，任何一步失败都算 CorruptDocument。
func (s *Store) Load(ctx context.Context) (doc *Document, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "docstore.load")
	defer span.End()

	start := time.Now()
	defer func() { monitoring.ObserveStoreOp(s.opts.Collection, "load", start, err) }()

	if err = s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	return s.loadLocked()
}

// Save 整份写回：先校验，校验失败不碰文件；
// 然后备份旧文件、写临时文件、rename 覆盖，读者永远看不到半成品。
func (s *Store) Save(ctx context.Context, doc *Document) (err error) {
	ctx, span := tracing.Tracer.Start(ctx, "docstore.save")
	defer span.End()

	start := time.Now()
	defer func() { monitoring.ObserveStoreOp(s.opts.Collection, "save", start, err) }()

	if err = s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	return s.saveLocked(ctx, doc)
}

func (s *Store) loadLocked() (*Document, error) {
	data, err := os.ReadFile(s.opts.Path)
	if os.IsNotExist(err) {
		return &Document{
			Version: s.opts.CurrentVersion,
			Data:    []json.RawMessage{},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.parseAndValidate(data)
}

// parseAndValidate 把原始字节变成当前版本的、通过校验的文档
func (s *Store) parseAndValidate(data []byte) (*Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, s.corrupt(fmt.Sprintf("parse failed: %v", err))
	}

	version := s.detectVersion(raw)
	if version == "" {
		return nil, s.corrupt("unrecognizable document shape, no version tag")
	}

	if version != s.opts.CurrentVersion {
		if s.opts.Migrations == nil {
			return nil, fmt.Errorf("%w: %s -> %s", util.ErrNoMigrationPath, version, s.opts.CurrentVersion)
		}
		upgraded, err := s.opts.Migrations.Apply(raw, version, s.opts.CurrentVersion, s.now())
		if err != nil {
			return nil, err
		}
		raw = upgraded
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, s.corrupt(fmt.Sprintf("re-encode failed: %v", err))
	}
	var doc Document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, s.corrupt(fmt.Sprintf("decode failed: %v", err))
	}
	if doc.Data == nil {
		doc.Data = []json.RawMessage{}
	}

	if s.opts.Validate != nil {
		for i, rec := range doc.Data {
			if err := s.opts.Validate(i, rec); err != nil {
				return nil, s.corrupt(fmt.Sprintf("record %d: %v", i, err))
			}
		}
	}

	return &doc, nil
}

func (s *Store) detectVersion(raw any) string {
	if m, ok := raw.(map[string]any); ok {
		if v, ok := m["version"].(string); ok && v != "" {
			return v
		}
	}
	if s.opts.DetectVersion != nil {
		return s.opts.DetectVersion(raw)
	}
	return ""
}

// corrupt 组装 CorruptDocument 错误，顺带附上可用备份，方便人工恢复
func (s *Store) corrupt(detail string) error {
	var names []string
	if backups, err := s.listBackupsLocked(); err == nil {
		for _, b := range backups {
			names = append(names, b.Path)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: %s: %s (no backups available)", util.ErrCorruptDocument, s.opts.Collection, detail)
	}
	return fmt.Errorf("%w: %s: %s (backups: %s)", util.ErrCorruptDocument, s.opts.Collection, detail, strings.Join(names, ", "))
}

func (s *Store) saveLocked(ctx context.Context, doc *Document) error {
	if s.opts.Validate != nil {
		for i, rec := range doc.Data {
			if err := s.opts.Validate(i, rec); err != nil {
				return fmt.Errorf("%w: record %d: %v", util.ErrValidationFailed, i, err)
			}
		}
	}

	doc.Version = s.opts.CurrentVersion
	doc.LastUpdated = s.now().UTC()
	if doc.Data == nil {
		doc.Data = []json.RawMessage{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	// 旧文件先进备份再被覆盖
	if _, statErr := os.Stat(s.opts.Path); statErr == nil {
		if _, err := s.createBackupLocked(ctx); err != nil {
			return err
		}
	}

	return s.writeAtomic(data)
}

// writeAtomic 写临时文件后 rename；失败时清掉临时文件，原文件保持不动
func (s *Store) writeAtomic(data []byte) error {
	tmp := s.opts.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.opts.Path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
