package service

import (
	"context"
	"errors"
	"testing"

	"github.com/MaxChen228/Linker-sub001/internal/config"
	"github.com/MaxChen228/Linker-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGrader struct {
	result *GradeResult
	err    error
}

func (g *stubGrader) Grade(ctx context.Context, sourceSentence, userAnswer string) (*GradeResult, error) {
	return g.result, g.err
}

type stubGenerator struct {
	question *Question
	review   *ReviewQuestion
	err      error
}

func (g *stubGenerator) Generate(ctx context.Context, level int, length string, seedExamples []string) (*Question, error) {
	return g.question, g.err
}

func (g *stubGenerator) GenerateReview(ctx context.Context, points []model.KnowledgePoint, level int, length string) (*ReviewQuestion, error) {
	return g.review, g.err
}

func TestSafeGraderNormalizesCategories(t *testing.T) {
	inner := &stubGrader{result: &GradeResult{
		IsCorrect: false,
		Errors: []GradeError{
			{Category: model.CategoryIsolated, KeyPoint: "介系詞"},
			{Category: "invented-category", KeyPoint: "怪類別"},
		},
	}}
	g := NewSafeGrader(inner, config.DefaultConfig().AI)

	res, err := g.Grade(context.Background(), "原句", "作答")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryIsolated, res.Errors[0].Category)
	// 未知類別一律歸入 other，不讓壞資料進知識點庫
	assert.Equal(t, model.CategoryOther, res.Errors[1].Category)
}

func TestSafeGraderFallsBackOnFailure(t *testing.T) {
	g := NewSafeGrader(&stubGrader{err: errors.New("upstream down")}, config.DefaultConfig().AI)

	res, err := g.Grade(context.Background(), "原句", "作答")
	require.NoError(t, err)
	// 無法判定時不算對，也不產生錯誤記錄
	assert.False(t, res.IsCorrect)
	assert.Empty(t, res.Errors)
}

func TestSafeGeneratorFallsBackOnFailure(t *testing.T) {
	g := NewSafeGenerator(&stubGenerator{err: errors.New("upstream down")}, config.DefaultConfig().AI)

	q, err := g.Generate(context.Background(), 3, "short", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Level)
	assert.NotEmpty(t, q.SourceSentence)

	// 等級超界時夾到合法範圍
	q, err = g.Generate(context.Background(), 99, "short", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, q.Level)
}

func TestSafeGeneratorPassesThroughSuccess(t *testing.T) {
	want := &Question{SourceSentence: "他每天去上學。", Level: 2}
	g := NewSafeGenerator(&stubGenerator{question: want}, config.DefaultConfig().AI)

	q, err := g.Generate(context.Background(), 2, "short", nil)
	require.NoError(t, err)
	assert.Equal(t, want, q)
}

func TestSafeGeneratorReviewFallbackTargetsPoints(t *testing.T) {
	g := NewSafeGenerator(&stubGenerator{err: errors.New("upstream down")}, config.DefaultConfig().AI)

	points := []model.KnowledgePoint{
		{ID: 7, Correction: "in the morning"},
		{ID: 9, Correction: "he goes"},
	}
	rq, err := g.GenerateReview(context.Background(), points, 2, "short")
	require.NoError(t, err)
	assert.Equal(t, []int{7, 9}, rq.TargetIDs)
	assert.Contains(t, rq.Hint, "in the morning")
}
