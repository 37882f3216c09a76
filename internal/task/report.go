package task

import (
	"time"

	"taskkeeper/internal/model"
)

// Stats 汇总任务数量。
//
// Completed 与 Incomplete 只统计未归档的任务，因此恒有
// Completed + Incomplete == Total - Archived。
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Incomplete int `json:"incomplete"`
	Archived   int `json:"archived"`
}

// ComputeStats 对任务列表做纯聚合，无副作用。
func ComputeStats(tasks []model.Task) Stats {
	var s Stats
	s.Total = len(tasks)
	for _, t := range tasks {
		if t.IsArchived {
			s.Archived++
			continue
		}
		if t.Completed {
			s.Completed++
		} else {
			s.Incomplete++
		}
	}
	return s
}

// FilterByPeriod 选出创建时间落在给定月份的任务。
//
// 日历月按 UTC 计算，避免依赖运行机器的本地时区。
func FilterByPeriod(tasks []model.Task, month time.Month, year int) []model.Task {
	out := []model.Task{}
	for _, t := range tasks {
		created := t.CreatedAt.UTC()
		if created.Month() == month && created.Year() == year {
			out = append(out, t)
		}
	}
	return out
}
