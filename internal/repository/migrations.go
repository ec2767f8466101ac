package repository

import (
	"fmt"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/model"
	"github.com/MaxChen228/Linker-sub001/pkg/docstore"
)

// 知识点集合的历史版本：
//   1.0 裸数组（最早的 JSON 文件就是一个知识点列表）
//   2.0 {"knowledge_points": [...], "last_updated": ...}
//   3.0 {"version", "last_updated", "data"}（当前）
func knowledgeMigrations() *docstore.MigrationRegistry {
	r := docstore.NewMigrationRegistry()
	r.Register("1.0", "2.0", knowledgeV1ToV2)
	r.Register("2.0", "3.0", knowledgeV2ToV3)
	return r
}

func detectKnowledgeVersion(raw any) string {
	switch v := raw.(type) {
	case []any:
		return "1.0"
	case map[string]any:
		if _, ok := v["knowledge_points"]; ok {
			return "2.0"
		}
		if _, ok := v["data"]; ok {
			return model.KnowledgeSchemaVersion
		}
	}
	return ""
}

func knowledgeV1ToV2(raw any) (any, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a bare array, got %T", raw)
	}
	return map[string]any{"knowledge_points": arr}, nil
}

func knowledgeV2ToV3(raw any) (any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", raw)
	}
	arr, ok := m["knowledge_points"].([]any)
	if !ok {
		return nil, fmt.Errorf("missing knowledge_points array")
	}

	out := make([]any, 0, len(arr))
	for i, it := range arr {
		rec, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		out = append(out, upgradeKnowledgeRecord(rec))
	}

	doc := map[string]any{"data": out}
	if s, ok := m["last_updated"].(string); ok {
		if _, err := time.Parse(time.RFC3339, s); err == nil {
			doc["last_updated"] = s
		}
	}
	return doc, nil
}

// legacyCategoryNames 旧版 UI 存的是中文类别标签
var legacyCategoryNames = map[string]model.ErrorCategory{
	"systematic":  model.CategorySystematic,
	"isolated":    model.CategoryIsolated,
	"enhancement": model.CategoryEnhancement,
	"other":       model.CategoryOther,
	"系統性錯誤":       model.CategorySystematic,
	"單一性錯誤":       model.CategoryIsolated,
	"可以更好":        model.CategoryEnhancement,
	"其他錯誤":        model.CategoryOther,
}

// upgradeKnowledgeRecord 补上新 schema 必填的字段；不修改入参
func upgradeKnowledgeRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec)+4)
	for k, v := range rec {
		out[k] = v
	}

	if cat, ok := out["category"].(string); ok {
		if mapped, ok := legacyCategoryNames[cat]; ok {
			out["category"] = string(mapped)
		} else {
			out["category"] = string(model.CategoryOther)
		}
	}
	if _, ok := out["tags"]; !ok {
		out["tags"] = []any{}
	}
	if _, ok := out["review_examples"]; !ok {
		out["review_examples"] = []any{}
	}
	if _, ok := out["is_deleted"]; !ok {
		out["is_deleted"] = false
	}
	return out
}

// 练习历史：1.0 裸数组 → 2.0 当前信封
func practiceMigrations() *docstore.MigrationRegistry {
	r := docstore.NewMigrationRegistry()
	r.Register("1.0", "2.0", practiceV1ToV2)
	return r
}

func detectPracticeVersion(raw any) string {
	switch v := raw.(type) {
	case []any:
		return "1.0"
	case map[string]any:
		if _, ok := v["data"]; ok {
			return model.PracticeSchemaVersion
		}
	}
	return ""
}

func practiceV1ToV2(raw any) (any, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a bare array, got %T", raw)
	}
	return map[string]any{"data": arr}, nil
}
