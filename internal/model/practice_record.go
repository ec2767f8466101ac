package model

import "time"

// PracticeSchemaVersion 练习历史集合当前的磁盘格式版本
const PracticeSchemaVersion = "2.0"

// PracticeRecord 一次出题作答的完整结果
type PracticeRecord struct {
	ID                int       `json:"id"`
	SourceSentence    string    `json:"source_sentence"`
	UserAnswer        string    `json:"user_answer"`
	CorrectAnswer     string    `json:"correct_answer,omitempty"`
	IsCorrect         bool      `json:"is_correct"`
	Level             int       `json:"level"`
	Length            string    `json:"length,omitempty"`
	KnowledgePointIDs []int     `json:"knowledge_point_ids,omitempty"`
	PracticedAt       time.Time `json:"practiced_at"`
}
