package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/config"
	"github.com/MaxChen228/Linker-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	return cfg
}

// 最早期的磁盘格式：裸数组 + 中文类别标签
const legacyKnowledgeV1 = `[
  {
    "id": 1,
    "key_point": "介系詞 in/on 搭配",
    "category": "單一性錯誤",
    "original_phrase": "on the morning",
    "correction": "in the morning",
    "original_error": {
      "source_sentence": "我早上七點起床。",
      "user_answer": "I get up at seven on the morning.",
      "correct_answer": "I get up at seven in the morning.",
      "timestamp": "2024-03-01T08:00:00Z"
    },
    "mastery_level": 0.5,
    "mistake_count": 2,
    "correct_count": 2,
    "created_at": "2024-03-01T08:00:00Z"
  },
  {
    "id": 2,
    "key_point": "主詞動詞一致",
    "category": "系統性錯誤",
    "original_phrase": "he go",
    "correction": "he goes",
    "original_error": {
      "source_sentence": "他每天去上學。",
      "user_answer": "He go to school every day.",
      "correct_answer": "He goes to school every day.",
      "timestamp": "2024-03-02T08:00:00Z"
    },
    "mastery_level": 0.0,
    "mistake_count": 3,
    "correct_count": 0,
    "created_at": "2024-03-02T08:00:00Z"
  }
]`

func TestLoadAllMigratesLegacyV1File(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.Storage.DataDir, knowledgeFileName)
	require.NoError(t, os.WriteFile(path, []byte(legacyKnowledgeV1), 0644))

	repo := NewKnowledgePointRepository(cfg, nil)
	pts, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, pts, 2)

	// 中文类别标签映射到枚举
	assert.Equal(t, model.CategoryIsolated, pts[0].Category)
	assert.Equal(t, model.CategorySystematic, pts[1].Category)
	// 迁移补上的默认字段
	assert.NotNil(t, pts[0].Tags)
	assert.NotNil(t, pts[0].ReviewExamples)
	assert.False(t, pts[0].IsDeleted)
	// 原始错误上下文原样保留
	assert.Equal(t, "I get up at seven on the morning.", pts[0].OriginalError.UserAnswer)
}

func TestSaveAllWritesCurrentEnvelope(t *testing.T) {
	cfg := testConfig(t)
	repo := NewKnowledgePointRepository(cfg, nil)
	ctx := context.Background()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := []model.KnowledgePoint{{
		ID:             1,
		KeyPoint:       "介系詞 in/on 搭配",
		Category:       model.CategoryIsolated,
		OriginalPhrase: "on the morning",
		Correction:     "in the morning",
		MasteryLevel:   0.5,
		MistakeCount:   1,
		CorrectCount:   1,
		CreatedAt:      created,
		Tags:           []string{},
		ReviewExamples: []model.ReviewExample{},
	}}
	require.NoError(t, repo.SaveAll(ctx, pts))

	raw, err := os.ReadFile(filepath.Join(cfg.Storage.DataDir, knowledgeFileName))
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &envelope))
	var version string
	require.NoError(t, json.Unmarshal(envelope["version"], &version))
	assert.Equal(t, model.KnowledgeSchemaVersion, version)
	assert.Contains(t, envelope, "last_updated")
	assert.Contains(t, envelope, "data")

	out, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, pts[0].KeyPoint, out[0].KeyPoint)
}

func TestPracticeRepositoryMigratesLegacyV1(t *testing.T) {
	cfg := testConfig(t)
	legacy := `[
	  {"id": 1, "source_sentence": "我每天早上七點起床。", "user_answer": "I get up at 7.", "is_correct": true, "level": 1, "practiced_at": "2024-03-01T08:00:00Z"}
	]`
	path := filepath.Join(cfg.Storage.DataDir, practiceFileName)
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	repo := NewPracticeRecordRepository(cfg, nil)
	recs, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].IsCorrect)
	assert.Equal(t, 1, recs[0].Level)
}

func TestBackupAndRestoreRoundtrip(t *testing.T) {
	cfg := testConfig(t)
	repo := NewKnowledgePointRepository(cfg, nil)
	ctx := context.Background()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := []model.KnowledgePoint{{
		ID: 1, KeyPoint: "第一版", Category: model.CategoryOther,
		MasteryLevel: 0, MistakeCount: 1, CreatedAt: created,
		Tags: []string{}, ReviewExamples: []model.ReviewExample{},
	}}
	require.NoError(t, repo.SaveAll(ctx, first))

	backupPath, err := repo.BackupNow(ctx)
	require.NoError(t, err)

	second := append(first, model.KnowledgePoint{
		ID: 2, KeyPoint: "第二版", Category: model.CategoryOther,
		MasteryLevel: 0, MistakeCount: 1, CreatedAt: created,
		Tags: []string{}, ReviewExamples: []model.ReviewExample{},
	})
	require.NoError(t, repo.SaveAll(ctx, second))

	require.NoError(t, repo.RestoreFromBackup(ctx, backupPath))
	out, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	backups, err := repo.ListBackups(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
}
