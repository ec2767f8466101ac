package service

import (
	"math"
	"sort"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/config"
	"github.com/MaxChen228/Linker-sub001/internal/model"
)

// nextInterval 计算下次复习间隔。
// mastery 是本次作答「之前」的掌握度：答对按掌握档位拉长间隔，
// 答错按 3*(1-mastery) 压短间隔；再乘类别权重，下限一天。
func nextInterval(cat model.ErrorCategory, mastery float64, wasCorrect bool, cfg config.SchedulerConfig) time.Duration {
	var baseDays float64
	if wasCorrect {
		switch {
		case mastery >= 0.9:
			baseDays = 30
		case mastery >= 0.7:
			baseDays = 14
		case mastery >= 0.5:
			baseDays = 7
		default:
			baseDays = 3
		}
	} else {
		baseDays = math.Max(1, math.Round(3*(1-mastery)))
	}

	days := baseDays * categoryWeight(cat, cfg)
	if days < 1 {
		days = 1
	}
	return time.Duration(days * 24 * float64(time.Hour))
}

func categoryWeight(cat model.ErrorCategory, cfg config.SchedulerConfig) float64 {
	var w float64
	switch cat {
	case model.CategorySystematic:
		w = cfg.WeightSystematic
	case model.CategoryIsolated:
		w = cfg.WeightIsolated
	case model.CategoryEnhancement:
		w = cfg.WeightEnhancement
	default:
		w = cfg.WeightOther
	}
	if w <= 0 {
		w = 1
	}
	return w
}

// sortReviewCandidates 到期的排前面，其次掌握度低的，再次错得多的
func sortReviewCandidates(pts []model.KnowledgePoint, now time.Time) {
	sort.SliceStable(pts, func(i, j int) bool {
		di, dj := pts[i].IsDue(now), pts[j].IsDue(now)
		if di != dj {
			return di
		}
		if pts[i].MasteryLevel != pts[j].MasteryLevel {
			return pts[i].MasteryLevel < pts[j].MasteryLevel
		}
		return pts[i].MistakeCount > pts[j].MistakeCount
	})
}
