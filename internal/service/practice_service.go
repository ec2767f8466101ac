package service

import (
	"context"
	"sync"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/model"
	"github.com/MaxChen228/Linker-sub001/internal/repository"
)

// PracticeService 练习历史的追加与查询
type PracticeService struct {
	repo *repository.PracticeRecordRepository
	mu   sync.Mutex
	now  func() time.Time
}

func NewPracticeService(repo *repository.PracticeRecordRepository) *PracticeService {
	return &PracticeService{repo: repo, now: time.Now}
}

// Record 追加一条练习记录，返回分配的 id
func (s *PracticeService) Record(ctx context.Context, rec model.PracticeRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.repo.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	max := 0
	for i := range recs {
		if recs[i].ID > max {
			max = recs[i].ID
		}
	}
	rec.ID = max + 1
	if rec.PracticedAt.IsZero() {
		rec.PracticedAt = s.now()
	}
	recs = append(recs, rec)

	if err := s.repo.SaveAll(ctx, recs); err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// Recent 按练习时间倒序取最近 limit 条，limit <= 0 全取
func (s *PracticeService) Recent(ctx context.Context, limit int) ([]model.PracticeRecord, error) {
	recs, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.PracticeRecord, len(recs))
	copy(out, recs)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
