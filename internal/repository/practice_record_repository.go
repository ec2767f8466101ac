package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/MaxChen228/Linker-sub001/internal/config"
	"github.com/MaxChen228/Linker-sub001/internal/model"
	"github.com/MaxChen228/Linker-sub001/internal/util"
	"github.com/MaxChen228/Linker-sub001/internal/validation"
	"github.com/MaxChen228/Linker-sub001/pkg/docstore"
)

const practiceFileName = "practice_history.json"

// PracticeRecordRepository 练习历史集合，与知识点集合结构同构
type PracticeRecordRepository struct {
	store *docstore.Store
}

func NewPracticeRecordRepository(cfg *config.Config, mirror docstore.Mirror) *PracticeRecordRepository {
	return &PracticeRecordRepository{
		store: docstore.New(docstore.Options{
			Path:            filepath.Join(cfg.Storage.DataDir, practiceFileName),
			Collection:      "practice_history",
			CurrentVersion:  model.PracticeSchemaVersion,
			BackupRetention: cfg.Storage.BackupRetention,
			LockTimeout:     cfg.Storage.LockTimeout,
			Migrations:      practiceMigrations(),
			DetectVersion:   detectPracticeVersion,
			Validate:        validation.RawPracticeRecord,
			Mirror:          mirror,
		}),
	}
}

func (r *PracticeRecordRepository) LoadAll(ctx context.Context) ([]model.PracticeRecord, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	recs := make([]model.PracticeRecord, 0, len(doc.Data))
	for i, raw := range doc.Data {
		var rec model.PracticeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", util.ErrCorruptDocument, i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (r *PracticeRecordRepository) SaveAll(ctx context.Context, recs []model.PracticeRecord) error {
	doc := &docstore.Document{Data: make([]json.RawMessage, 0, len(recs))}
	for i := range recs {
		raw, err := json.Marshal(&recs[i])
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		doc.Data = append(doc.Data, raw)
	}
	return r.store.Save(ctx, doc)
}

func (r *PracticeRecordRepository) BackupNow(ctx context.Context) (string, error) {
	return r.store.BackupNow(ctx)
}

func (r *PracticeRecordRepository) ListBackups(ctx context.Context) ([]docstore.BackupInfo, error) {
	return r.store.ListBackups(ctx)
}

func (r *PracticeRecordRepository) RestoreFromBackup(ctx context.Context, backupPath string) error {
	return r.store.RestoreFromBackup(ctx, backupPath)
}
