package model

import "time"

// ProgressReport 跨集合（知识点 × 练习历史）的只读汇总
type ProgressReport struct {
	GeneratedAt          time.Time             `json:"generated_at"`
	TotalKnowledgePoints int                   `json:"total_knowledge_points"`
	ActivePoints         int                   `json:"active_points"`
	DeletedPoints        int                   `json:"deleted_points"`
	DueForReview         int                   `json:"due_for_review"`
	AverageMastery       float64               `json:"average_mastery"`
	CategoryCounts       map[ErrorCategory]int `json:"category_counts"`
	TotalPracticed       int                   `json:"total_practiced"`
	PracticeAccuracy     float64               `json:"practice_accuracy"`
	PracticedPointCounts map[int]int           `json:"practiced_point_counts,omitempty"`
}

// PurgeResult 清理操作的统计，dry run 时只有数字不动数据
type PurgeResult struct {
	Examined  int   `json:"examined"`
	Purged    int   `json:"purged"`
	Preserved int   `json:"preserved"`
	PurgedIDs []int `json:"purged_ids,omitempty"`
	DryRun    bool  `json:"dry_run"`
}
