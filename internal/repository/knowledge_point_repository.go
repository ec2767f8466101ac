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

const knowledgeFileName = "knowledge.json"

// KnowledgePointRepository 知识点集合的类型化入口，落盘细节交给 docstore
type KnowledgePointRepository struct {
	store *docstore.Store
}

func NewKnowledgePointRepository(cfg *config.Config, mirror docstore.Mirror) *KnowledgePointRepository {
	return &KnowledgePointRepository{
		store: docstore.New(docstore.Options{
			Path:            filepath.Join(cfg.Storage.DataDir, knowledgeFileName),
			Collection:      "knowledge_points",
			CurrentVersion:  model.KnowledgeSchemaVersion,
			BackupRetention: cfg.Storage.BackupRetention,
			LockTimeout:     cfg.Storage.LockTimeout,
			Migrations:      knowledgeMigrations(),
			DetectVersion:   detectKnowledgeVersion,
			Validate:        validation.RawKnowledgePoint,
			Mirror:          mirror,
		}),
	}
}

func (r *KnowledgePointRepository) LoadAll(ctx context.Context) ([]model.KnowledgePoint, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	pts := make([]model.KnowledgePoint, 0, len(doc.Data))
	for i, rec := range doc.Data {
		var kp model.KnowledgePoint
		if err := json.Unmarshal(rec, &kp); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", util.ErrCorruptDocument, i, err)
		}
		pts = append(pts, kp)
	}
	return pts, nil
}

func (r *KnowledgePointRepository) SaveAll(ctx context.Context, pts []model.KnowledgePoint) error {
	doc := &docstore.Document{Data: make([]json.RawMessage, 0, len(pts))}
	for i := range pts {
		rec, err := json.Marshal(&pts[i])
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		doc.Data = append(doc.Data, rec)
	}
	return r.store.Save(ctx, doc)
}

func (r *KnowledgePointRepository) BackupNow(ctx context.Context) (string, error) {
	return r.store.BackupNow(ctx)
}

func (r *KnowledgePointRepository) ListBackups(ctx context.Context) ([]docstore.BackupInfo, error) {
	return r.store.ListBackups(ctx)
}

func (r *KnowledgePointRepository) RestoreFromBackup(ctx context.Context, backupPath string) error {
	return r.store.RestoreFromBackup(ctx, backupPath)
}
