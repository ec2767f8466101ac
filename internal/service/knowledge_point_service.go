package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/config"
	"github.com/MaxChen228/Linker-sub001/internal/model"
	"github.com/MaxChen228/Linker-sub001/internal/repository"
	"github.com/MaxChen228/Linker-sub001/internal/util"
	"github.com/MaxChen228/Linker-sub001/pkg/logger"
	"github.com/MaxChen228/Linker-sub001/pkg/monitoring"
	"go.uber.org/zap"
)

// KnowledgePointService 知识点生命周期 + 间隔复习调度。
// mu 串联「读出-修改-写回」整个周期，避免并发请求互相覆盖。
type KnowledgePointService struct {
	repo *repository.KnowledgePointRepository
	cfg  *config.Config
	mu   sync.Mutex
	now  func() time.Time
}

func NewKnowledgePointService(repo *repository.KnowledgePointRepository, cfg *config.Config) *KnowledgePointService {
	return &KnowledgePointService{repo: repo, cfg: cfg, now: time.Now}
}

// ErrorDetail 批改协作方给出的单个错误，是建立知识点的原料
type ErrorDetail struct {
	Category       model.ErrorCategory `json:"category"`
	Subtype        string              `json:"subtype,omitempty"`
	KeyPoint       string              `json:"key_point"`
	OriginalPhrase string              `json:"original_phrase"`
	Correction     string              `json:"correction"`
	Explanation    string              `json:"explanation,omitempty"`
	Severity       string              `json:"severity,omitempty"`
	SourceSentence string              `json:"source_sentence"`
	UserAnswer     string              `json:"user_answer"`
	CorrectAnswer  string              `json:"correct_answer"`
}

// AddOrMerge 按自然键 (key_point, original_phrase, correction) 找未删除的记录：
// 找到视为又犯同一个错并入其中，找不到建新知识点，返回其 id
func (s *KnowledgePointService) AddOrMerge(ctx context.Context, det ErrorDetail) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	probe := model.KnowledgePoint{KeyPoint: det.KeyPoint, OriginalPhrase: det.OriginalPhrase, Correction: det.Correction}
	key := probe.CompositeKey()

	for i := range pts {
		kp := &pts[i]
		if kp.IsDeleted || kp.CompositeKey() != key {
			continue
		}

		// 同一个错又犯了：并入现有记录而不是新建
		pre := kp.MasteryLevel
		kp.ReviewExamples = append(kp.ReviewExamples, model.ReviewExample{
			SourceSentence: det.SourceSentence,
			UserAnswer:     det.UserAnswer,
			CorrectAnswer:  det.CorrectAnswer,
			Timestamp:      now,
			WasCorrect:     false,
		})
		kp.MistakeCount++
		kp.MasteryLevel = kp.ComputedMastery()
		kp.LastSeen = &now
		next := now.Add(nextInterval(kp.Category, pre, false, s.cfg.Scheduler))
		kp.NextReview = &next

		if err := s.repo.SaveAll(ctx, pts); err != nil {
			return 0, err
		}
		logger.Log.Info("重复错误并入既有知识点",
			zap.Int("id", kp.ID),
			zap.String("key_point", kp.KeyPoint),
			zap.Int("mistake_count", kp.MistakeCount))
		return kp.ID, nil
	}

	cat := det.Category
	if !cat.Valid() {
		cat = model.CategoryOther
	}

	id := nextID(pts)
	next := now.Add(nextInterval(cat, 0.1, false, s.cfg.Scheduler))
	kp := model.KnowledgePoint{
		ID:             id,
		KeyPoint:       det.KeyPoint,
		Category:       cat,
		Subtype:        det.Subtype,
		Explanation:    det.Explanation,
		OriginalPhrase: det.OriginalPhrase,
		Correction:     det.Correction,
		OriginalError: model.OriginalError{
			SourceSentence: det.SourceSentence,
			UserAnswer:     det.UserAnswer,
			CorrectAnswer:  det.CorrectAnswer,
			Timestamp:      now,
		},
		ReviewExamples: []model.ReviewExample{},
		MasteryLevel:   0.1,
		MistakeCount:   1,
		CorrectCount:   0,
		CreatedAt:      now,
		LastSeen:       &now,
		NextReview:     &next,
		Tags:           []string{},
	}
	pts = append(pts, kp)

	if err := s.repo.SaveAll(ctx, pts); err != nil {
		return 0, err
	}
	logger.Log.Info("建立新知识点", zap.Int("id", id), zap.String("key_point", det.KeyPoint))
	return id, nil
}

// RecordOutcome 记录一次复习结果并重排下次复习时间。
// 间隔用作答前的掌握度计算，id 不存在或已删除时返回 NotFound。
func (s *KnowledgePointService) RecordOutcome(ctx context.Context, id int, wasCorrect bool, example *model.ReviewExample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return err
	}

	kp := findActive(pts, id)
	if kp == nil {
		return fmt.Errorf("%w: id %d", util.ErrNotFound, id)
	}

	now := s.now()
	pre := kp.MasteryLevel

	if wasCorrect {
		kp.CorrectCount++
	} else {
		kp.MistakeCount++
	}
	kp.MasteryLevel = kp.ComputedMastery()
	kp.LastSeen = &now
	next := now.Add(nextInterval(kp.Category, pre, wasCorrect, s.cfg.Scheduler))
	kp.NextReview = &next

	if example != nil {
		ex := *example
		ex.WasCorrect = wasCorrect
		if ex.Timestamp.IsZero() {
			ex.Timestamp = now
		}
		kp.ReviewExamples = append(kp.ReviewExamples, ex)
	}

	return s.repo.SaveAll(ctx, pts)
}

// Get 取单个未删除的知识点
func (s *KnowledgePointService) Get(ctx context.Context, id int) (*model.KnowledgePoint, error) {
	pts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if kp := findActive(pts, id); kp != nil {
		out := *kp
		return &out, nil
	}
	return nil, fmt.Errorf("%w: id %d", util.ErrNotFound, id)
}

// List 默认只给未删除的记录
func (s *KnowledgePointService) List(ctx context.Context, includeDeleted bool) ([]model.KnowledgePoint, error) {
	pts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if includeDeleted {
		return pts, nil
	}
	out := make([]model.KnowledgePoint, 0, len(pts))
	for _, kp := range pts {
		if !kp.IsDeleted {
			out = append(out, kp)
		}
	}
	return out, nil
}

// UpdateKnowledgePointRequest 部分更新，nil 字段不动
type UpdateKnowledgePointRequest struct {
	KeyPoint       *string              `json:"key_point,omitempty"`
	Category       *model.ErrorCategory `json:"category,omitempty"`
	Subtype        *string              `json:"subtype,omitempty"`
	Explanation    *string              `json:"explanation,omitempty"`
	OriginalPhrase *string              `json:"original_phrase,omitempty"`
	Correction     *string              `json:"correction,omitempty"`
	CustomNotes    *string              `json:"custom_notes,omitempty"`
	Tags           *[]string            `json:"tags,omitempty"`
}

// Update 逐字段打补丁，每个实际变化写一条版本历史
func (s *KnowledgePointService) Update(ctx context.Context, id int, req UpdateKnowledgePointRequest) (*model.KnowledgePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	kp := findActive(pts, id)
	if kp == nil {
		return nil, fmt.Errorf("%w: id %d", util.ErrNotFound, id)
	}

	now := s.now()
	logEdit := func(field, oldVal, newVal string) {
		if oldVal == newVal {
			return
		}
		kp.VersionHistory = append(kp.VersionHistory, model.EditEntry{
			EditedAt: now, Field: field, OldValue: oldVal, NewValue: newVal,
		})
	}

	if req.KeyPoint != nil {
		logEdit("key_point", kp.KeyPoint, *req.KeyPoint)
		kp.KeyPoint = *req.KeyPoint
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			return nil, fmt.Errorf("invalid category %q", *req.Category)
		}
		logEdit("category", string(kp.Category), string(*req.Category))
		kp.Category = *req.Category
	}
	if req.Subtype != nil {
		logEdit("subtype", kp.Subtype, *req.Subtype)
		kp.Subtype = *req.Subtype
	}
	if req.Explanation != nil {
		logEdit("explanation", kp.Explanation, *req.Explanation)
		kp.Explanation = *req.Explanation
	}
	if req.OriginalPhrase != nil {
		logEdit("original_phrase", kp.OriginalPhrase, *req.OriginalPhrase)
		kp.OriginalPhrase = *req.OriginalPhrase
	}
	if req.Correction != nil {
		logEdit("correction", kp.Correction, *req.Correction)
		kp.Correction = *req.Correction
	}
	if req.CustomNotes != nil {
		logEdit("custom_notes", kp.CustomNotes, *req.CustomNotes)
		kp.CustomNotes = *req.CustomNotes
	}
	if req.Tags != nil {
		logEdit("tags", strings.Join(kp.Tags, ","), strings.Join(*req.Tags, ","))
		kp.Tags = append([]string{}, (*req.Tags)...)
	}

	if err := s.repo.SaveAll(ctx, pts); err != nil {
		return nil, err
	}
	out := *kp
	return &out, nil
}

// SoftDelete 软删除，保留记录等待恢复或定期清理
func (s *KnowledgePointService) SoftDelete(ctx context.Context, id int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return err
	}

	kp := findActive(pts, id)
	if kp == nil {
		return fmt.Errorf("%w: id %d", util.ErrNotFound, id)
	}

	now := s.now()
	kp.IsDeleted = true
	kp.DeletedAt = &now
	kp.DeletedReason = reason

	return s.repo.SaveAll(ctx, pts)
}

// Restore 只有处于已删除状态的记录能恢复，否则一律 NotFound
func (s *KnowledgePointService) Restore(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return err
	}

	for i := range pts {
		kp := &pts[i]
		if kp.ID != id || !kp.IsDeleted {
			continue
		}
		kp.IsDeleted = false
		kp.DeletedAt = nil
		kp.DeletedReason = ""
		return s.repo.SaveAll(ctx, pts)
	}
	return fmt.Errorf("%w: id %d (not in deleted state)", util.ErrNotFound, id)
}

// PurgeDeleted 永久清除删除超过 olderThanDays 天的记录；
// 掌握度低于保留阈值的记录不清（没学会的错误有长期参考价值）。
// olderThanDays <= 0 时用配置默认值。
func (s *KnowledgePointService) PurgeDeleted(ctx context.Context, olderThanDays int, dryRun bool) (*model.PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	if olderThanDays <= 0 {
		olderThanDays = s.cfg.Scheduler.PurgeAfterDays
	}
	cutoff := s.now().AddDate(0, 0, -olderThanDays)
	result := &model.PurgeResult{DryRun: dryRun}

	kept := make([]model.KnowledgePoint, 0, len(pts))
	for _, kp := range pts {
		if !kp.IsDeleted || kp.DeletedAt == nil || !kp.DeletedAt.Before(cutoff) {
			kept = append(kept, kp)
			continue
		}
		result.Examined++
		if kp.MasteryLevel < s.cfg.Scheduler.PurgePreserveBelow {
			result.Preserved++
			kept = append(kept, kp)
			continue
		}
		result.Purged++
		result.PurgedIDs = append(result.PurgedIDs, kp.ID)
	}

	if dryRun || result.Purged == 0 {
		return result, nil
	}

	if err := s.repo.SaveAll(ctx, kept); err != nil {
		return nil, err
	}
	monitoring.PurgedRecords.Add(float64(result.Purged))
	logger.Log.Info("清理软删除知识点",
		zap.Int("purged", result.Purged),
		zap.Int("preserved", result.Preserved))
	return result, nil
}

// GetReviewCandidates 取间隔复习佇列：只含單一性/可以更好两类，
// 到期优先、低掌握度优先、错误次数多者优先，截断到 limit
func (s *KnowledgePointService) GetReviewCandidates(ctx context.Context, limit int) ([]model.KnowledgePoint, error) {
	pts, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cands := make([]model.KnowledgePoint, 0, len(pts))
	for _, kp := range pts {
		if kp.IsDeleted || !kp.Category.ReviewEligible() {
			continue
		}
		cands = append(cands, kp)
	}

	sortReviewCandidates(cands, now)
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}

func findActive(pts []model.KnowledgePoint, id int) *model.KnowledgePoint {
	for i := range pts {
		if pts[i].ID == id && !pts[i].IsDeleted {
			return &pts[i]
		}
	}
	return nil
}

// nextID 取 max(id)+1，空集合从 1 开始；id 永不复用
func nextID(pts []model.KnowledgePoint) int {
	max := 0
	for i := range pts {
		if pts[i].ID > max {
			max = pts[i].ID
		}
	}
	return max + 1
}
