package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/MaxChen228/Linker-sub001/internal/model"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Finding 一条校验发现：级别 + 字段路径 + 可读信息 + 机器码
type Finding struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Code     string   `json:"code,omitempty"`
}

func (f Finding) Blocking() bool {
	return f.Severity == SeverityError || f.Severity == SeverityCritical
}

// masteryTolerance 容忍新建记录的 0.1 起始掌握度
// （此时计数器 1 错 0 对，推导值是 0）
const masteryTolerance = 0.15

// ValidateKnowledgePoint 结构 + 语义检查，findings 为空表示完全干净
func ValidateKnowledgePoint(kp *model.KnowledgePoint) []Finding {
	var findings []Finding

	if kp.ID <= 0 {
		findings = append(findings, Finding{SeverityError, "id", "id must be a positive integer", "range"})
	}
	if strings.TrimSpace(kp.KeyPoint) == "" {
		findings = append(findings, Finding{SeverityError, "key_point", "key_point is required", "required"})
	}
	if !kp.Category.Valid() {
		findings = append(findings, Finding{SeverityError, "category",
			fmt.Sprintf("unknown category %q", kp.Category), "enum"})
	}
	if kp.MasteryLevel < 0 || kp.MasteryLevel > 1 {
		findings = append(findings, Finding{SeverityError, "mastery_level",
			fmt.Sprintf("mastery_level %.4f out of [0, 1]", kp.MasteryLevel), "range"})
	}
	if kp.MistakeCount < 0 {
		findings = append(findings, Finding{SeverityError, "mistake_count", "mistake_count must be non-negative", "range"})
	}
	if kp.CorrectCount < 0 {
		findings = append(findings, Finding{SeverityError, "correct_count", "correct_count must be non-negative", "range"})
	}

	// 掌握度必须与计数器一致（容忍起始值偏差）
	if kp.MistakeCount >= 0 && kp.CorrectCount >= 0 {
		if math.Abs(kp.MasteryLevel-kp.ComputedMastery()) > masteryTolerance {
			findings = append(findings, Finding{SeverityError, "mastery_level",
				fmt.Sprintf("mastery_level %.4f inconsistent with counters (%d correct / %d mistakes)",
					kp.MasteryLevel, kp.CorrectCount, kp.MistakeCount), "consistency"})
		}
	}

	if kp.CreatedAt.IsZero() {
		findings = append(findings, Finding{SeverityWarning, "created_at", "created_at is unset", "required"})
	}
	if kp.LastSeen != nil && !kp.CreatedAt.IsZero() && kp.LastSeen.Before(kp.CreatedAt) {
		findings = append(findings, Finding{SeverityError, "last_seen", "last_seen precedes created_at", "consistency"})
	}
	if kp.NextReview != nil && kp.LastSeen != nil && kp.NextReview.Before(*kp.LastSeen) {
		findings = append(findings, Finding{SeverityError, "next_review", "next_review precedes last_seen", "consistency"})
	}

	if kp.IsDeleted && kp.DeletedAt == nil {
		findings = append(findings, Finding{SeverityWarning, "deleted_at", "deleted record has no deleted_at", "consistency"})
	}
	if !kp.IsDeleted && kp.DeletedAt != nil {
		findings = append(findings, Finding{SeverityWarning, "deleted_at", "active record carries deleted_at", "consistency"})
	}

	return findings
}

// ValidatePracticeRecord 练习历史的单条检查
func ValidatePracticeRecord(rec *model.PracticeRecord) []Finding {
	var findings []Finding

	if rec.ID <= 0 {
		findings = append(findings, Finding{SeverityError, "id", "id must be a positive integer", "range"})
	}
	if strings.TrimSpace(rec.SourceSentence) == "" {
		findings = append(findings, Finding{SeverityError, "source_sentence", "source_sentence is required", "required"})
	}
	if rec.Level < 0 {
		findings = append(findings, Finding{SeverityWarning, "level", "level should be non-negative", "range"})
	}
	if rec.PracticedAt.IsZero() {
		findings = append(findings, Finding{SeverityWarning, "practiced_at", "practiced_at is unset", "required"})
	}

	return findings
}

// AsError 有 Error/Critical 级别发现时返回汇总错误，否则 nil
func AsError(findings []Finding) error {
	var parts []string
	for _, f := range findings {
		if f.Blocking() {
			parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

// RawKnowledgePoint 给存储层用的逐条校验回调
func RawKnowledgePoint(index int, record json.RawMessage) error {
	var kp model.KnowledgePoint
	if err := json.Unmarshal(record, &kp); err != nil {
		return fmt.Errorf("decode: %v", err)
	}
	return AsError(ValidateKnowledgePoint(&kp))
}

// RawPracticeRecord 给存储层用的逐条校验回调
func RawPracticeRecord(index int, record json.RawMessage) error {
	var rec model.PracticeRecord
	if err := json.Unmarshal(record, &rec); err != nil {
		return fmt.Errorf("decode: %v", err)
	}
	return AsError(ValidatePracticeRecord(&rec))
}
