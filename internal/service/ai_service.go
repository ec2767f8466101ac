package service

import (
	"context"
	"fmt"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/config"
	"github.com/MaxChen228/Linker-sub001/internal/model"
	"github.com/MaxChen228/Linker-sub001/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GradeError 批改结果里的单个错误，进入知识点仓库前先归一化类别
type GradeError struct {
	Category       model.ErrorCategory `json:"category"`
	Subtype        string              `json:"subtype,omitempty"`
	KeyPoint       string              `json:"key_point"`
	OriginalPhrase string              `json:"original_phrase"`
	Correction     string              `json:"correction"`
	Explanation    string              `json:"explanation,omitempty"`
	Severity       string              `json:"severity,omitempty"`
}

// GradeResult 一次批改的完整结果
type GradeResult struct {
	IsCorrect bool         `json:"is_correct"`
	Feedback  string       `json:"feedback,omitempty"`
	Errors    []GradeError `json:"errors"`
}

// Question 出题结果
type Question struct {
	SourceSentence string `json:"source_sentence"`
	Hint           string `json:"hint,omitempty"`
	Level          int    `json:"level"`
	Length         string `json:"length,omitempty"`
}

// ReviewQuestion 针对特定知识点的复习题，TargetIDs 记录它在考哪些点
type ReviewQuestion struct {
	Question
	TargetIDs []int `json:"target_ids"`
}

// Grader 批改协作方：给原句和作答，判对错并列出错误
type Grader interface {
	Grade(ctx context.Context, sourceSentence, userAnswer string) (*GradeResult, error)
}

// Generator 出题协作方
type Generator interface {
	Generate(ctx context.Context, level int, length string, seedExamples []string) (*Question, error)
	GenerateReview(ctx context.Context, points []model.KnowledgePoint, level int, length string) (*ReviewQuestion, error)
}

// SafeGrader 包一层限流 + 超时 + 确定性兜底。
// 协作方失败时学习流程不中断：按「无法判定即不算对」处理。
type SafeGrader struct {
	inner   Grader
	limiter *rate.Limiter
	timeout time.Duration
}

func NewSafeGrader(inner Grader, cfg config.AIConfig) *SafeGrader {
	per := cfg.RatePerMinute
	if per <= 0 {
		per = 20
	}
	return &SafeGrader{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(per)), per),
		timeout: cfg.CallTimeout,
	}
}

func (g *SafeGrader) Grade(ctx context.Context, sourceSentence, userAnswer string) (*GradeResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.inner.Grade(callCtx, sourceSentence, userAnswer)
	if err != nil {
		logger.Log.Warn("批改协作方失败，使用兜底结果", zap.Error(err))
		return &GradeResult{IsCorrect: false, Feedback: "批改服务暂不可用，本次不计入掌握度", Errors: []GradeError{}}, nil
	}

	// 类别归一化：未知类别一律归入 other
	for i := range res.Errors {
		if !res.Errors[i].Category.Valid() {
			res.Errors[i].Category = model.CategoryOther
		}
	}
	return res, nil
}

// SafeGenerator 出题侧的限流 + 超时 + 确定性兜底
type SafeGenerator struct {
	inner   Generator
	limiter *rate.Limiter
	timeout time.Duration
}

func NewSafeGenerator(inner Generator, cfg config.AIConfig) *SafeGenerator {
	per := cfg.RatePerMinute
	if per <= 0 {
		per = 20
	}
	return &SafeGenerator{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(per)), per),
		timeout: cfg.CallTimeout,
	}
}

// 兜底题库：按难度等级给固定句子，协作方不可用时保证还有题可做
var fallbackSentences = map[int]string{
	1: "我每天早上七點起床。",
	2: "如果明天不下雨，我們就去爬山。",
	3: "儘管他已經很努力了，結果仍然不如預期。",
	4: "這項政策的長期影響，恐怕要等到十年後才能完整評估。",
	5: "倘若當初決策者能多方徵詢意見，如今的局面或許不至於如此棘手。",
}

func (g *SafeGenerator) Generate(ctx context.Context, level int, length string, seedExamples []string) (*Question, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	q, err := g.inner.Generate(callCtx, level, length, seedExamples)
	if err != nil {
		logger.Log.Warn("出题协作方失败，使用兜底题目", zap.Int("level", level), zap.Error(err))
		return fallbackQuestion(level, length), nil
	}
	return q, nil
}

func (g *SafeGenerator) GenerateReview(ctx context.Context, points []model.KnowledgePoint, level int, length string) (*ReviewQuestion, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	rq, err := g.inner.GenerateReview(callCtx, points, level, length)
	if err != nil {
		logger.Log.Warn("复习出题协作方失败，使用兜底题目", zap.Error(err))
		return fallbackReviewQuestion(points, level, length), nil
	}
	return rq, nil
}

func fallbackQuestion(level int, length string) *Question {
	lv := level
	if lv < 1 {
		lv = 1
	}
	if lv > 5 {
		lv = 5
	}
	return &Question{SourceSentence: fallbackSentences[lv], Level: lv, Length: length}
}

// fallbackReviewQuestion 用第一个知识点的正确用法拼一句提示式复习题
func fallbackReviewQuestion(points []model.KnowledgePoint, level int, length string) *ReviewQuestion {
	rq := &ReviewQuestion{Question: *fallbackQuestion(level, length)}
	if len(points) > 0 {
		rq.Hint = fmt.Sprintf("請在翻譯中用上 %q", points[0].Correction)
	}
	for _, kp := range points {
		rq.TargetIDs = append(rq.TargetIDs, kp.ID)
	}
	return rq
}
