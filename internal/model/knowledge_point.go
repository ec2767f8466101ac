package model

import "time"

// KnowledgeSchemaVersion 知识点集合当前的磁盘格式版本
const KnowledgeSchemaVersion = "3.0"

type ErrorCategory string

const (
	CategorySystematic  ErrorCategory = "systematic"  // 系統性錯誤：文法規則類，靠新題強化
	CategoryIsolated    ErrorCategory = "isolated"    // 單一性錯誤：單字片語類，靠間隔複習
	CategoryEnhancement ErrorCategory = "enhancement" // 可以更好：表達升級建議
	CategoryOther       ErrorCategory = "other"
)

func (c ErrorCategory) Valid() bool {
	switch c {
	case CategorySystematic, CategoryIsolated, CategoryEnhancement, CategoryOther:
		return true
	}
	return false
}

// ReviewEligible 只有單一性與可以更好兩類進入間隔複習佇列，
// 系統性/其他靠出新題強化
func (c ErrorCategory) ReviewEligible() bool {
	return c == CategoryIsolated || c == CategoryEnhancement
}

// OriginalError 首次犯錯時的完整上下文，建立後不再修改
type OriginalError struct {
	SourceSentence string    `json:"source_sentence"`
	UserAnswer     string    `json:"user_answer"`
	CorrectAnswer  string    `json:"correct_answer"`
	Timestamp      time.Time `json:"timestamp"`
}

// ReviewExample 複習時的一次作答，只追加不修改
type ReviewExample struct {
	SourceSentence string    `json:"source_sentence"`
	UserAnswer     string    `json:"user_answer"`
	CorrectAnswer  string    `json:"correct_answer"`
	Timestamp      time.Time `json:"timestamp"`
	WasCorrect     bool      `json:"was_correct"`
}

// EditEntry 人工編輯的欄位級修改紀錄
type EditEntry struct {
	EditedAt time.Time `json:"edited_at"`
	Field    string    `json:"field"`
	OldValue string    `json:"old_value"`
	NewValue string    `json:"new_value"`
}

type KnowledgePoint struct {
	ID             int             `json:"id"`
	KeyPoint       string          `json:"key_point"`
	Category       ErrorCategory   `json:"category"`
	Subtype        string          `json:"subtype,omitempty"`
	Explanation    string          `json:"explanation,omitempty"`
	OriginalPhrase string          `json:"original_phrase"`
	Correction     string          `json:"correction"`
	OriginalError  OriginalError   `json:"original_error"`
	ReviewExamples []ReviewExample `json:"review_examples"`
	MasteryLevel   float64         `json:"mastery_level"`
	MistakeCount   int             `json:"mistake_count"`
	CorrectCount   int             `json:"correct_count"`
	CreatedAt      time.Time       `json:"created_at"`
	LastSeen       *time.Time      `json:"last_seen,omitempty"`
	NextReview     *time.Time      `json:"next_review,omitempty"`
	IsDeleted      bool            `json:"is_deleted"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
	DeletedReason  string          `json:"deleted_reason,omitempty"`
	Tags           []string        `json:"tags"`
	CustomNotes    string          `json:"custom_notes,omitempty"`
	VersionHistory []EditEntry     `json:"version_history,omitempty"`
}

// CompositeKey 自然鍵 (key_point, original_phrase, correction)，
// 用來判斷「同一個錯誤又犯了」該合併而不是新建
func (kp *KnowledgePoint) CompositeKey() string {
	return kp.KeyPoint + "\x00" + kp.OriginalPhrase + "\x00" + kp.Correction
}

// ComputedMastery 由計數器推導的掌握度，分母為零時是 0
func (kp *KnowledgePoint) ComputedMastery() float64 {
	total := kp.CorrectCount + kp.MistakeCount
	if total == 0 {
		return 0
	}
	return float64(kp.CorrectCount) / float64(total)
}

// IsDue 沒排過複習時間也視為到期
func (kp *KnowledgePoint) IsDue(now time.Time) bool {
	if kp.NextReview == nil {
		return true
	}
	return !kp.NextReview.After(now)
}
