package service

import (
	"context"
	"sync"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/model"
	"github.com/MaxChen228/Linker-sub001/internal/repository"
)

// CorrelationService 跨知识点与练习历史两个集合的只读汇总。
// 单个互斥量罩住两次读取，报告内部自洽。
type CorrelationService struct {
	knowledge *repository.KnowledgePointRepository
	practice  *repository.PracticeRecordRepository
	mu        sync.Mutex
	now       func() time.Time
}

func NewCorrelationService(knowledge *repository.KnowledgePointRepository, practice *repository.PracticeRecordRepository) *CorrelationService {
	return &CorrelationService{knowledge: knowledge, practice: practice, now: time.Now}
}

// ProgressReport 汇总学习进度：知识点分布、到期数、平均掌握度、练习正确率
func (s *CorrelationService) ProgressReport(ctx context.Context) (*model.ProgressReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts, err := s.knowledge.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.practice.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := &model.ProgressReport{
		GeneratedAt:          now,
		TotalKnowledgePoints: len(pts),
		CategoryCounts:       make(map[model.ErrorCategory]int),
		PracticedPointCounts: make(map[int]int),
	}

	var masterySum float64
	for i := range pts {
		kp := &pts[i]
		if kp.IsDeleted {
			report.DeletedPoints++
			continue
		}
		report.ActivePoints++
		report.CategoryCounts[kp.Category]++
		masterySum += kp.MasteryLevel
		if kp.Category.ReviewEligible() && kp.IsDue(now) {
			report.DueForReview++
		}
	}
	if report.ActivePoints > 0 {
		report.AverageMastery = masterySum / float64(report.ActivePoints)
	}

	correct := 0
	for i := range recs {
		report.TotalPracticed++
		if recs[i].IsCorrect {
			correct++
		}
		for _, id := range recs[i].KnowledgePointIDs {
			report.PracticedPointCounts[id]++
		}
	}
	if report.TotalPracticed > 0 {
		report.PracticeAccuracy = float64(correct) / float64(report.TotalPracticed)
	}

	return report, nil
}
