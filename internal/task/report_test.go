package task

import (
	"testing"
	"time"

	"taskkeeper/internal/model"
)

func TestComputeStats(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Completed: true},
		{ID: 2, Completed: false},
		{ID: 3, Completed: false},
		{ID: 4, Completed: true, IsArchived: true}, // 归档计数与完成状态无关
		{ID: 5, IsArchived: true},
	}

	s := ComputeStats(tasks)
	if s.Total != 5 || s.Completed != 1 || s.Incomplete != 2 || s.Archived != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.Completed+s.Incomplete != s.Total-s.Archived {
		t.Fatalf("stats identity violated: %+v", s)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	s := ComputeStats(nil)
	if s.Total != 0 || s.Completed != 0 || s.Incomplete != 0 || s.Archived != 0 {
		t.Fatalf("expected zero stats, got %+v", s)
	}
}

func TestFilterByPeriod(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, CreatedAt: time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)},
		{ID: 2, CreatedAt: time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)},
		{ID: 3, CreatedAt: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)},
		{ID: 4, CreatedAt: time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)}, // 同月不同年
	}

	got := FilterByPeriod(tasks, time.August, 2026)
	if len(got) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(got))
	}
	for _, tk := range got {
		if tk.CreatedAt.UTC().Month() != time.August || tk.CreatedAt.UTC().Year() != 2026 {
			t.Fatalf("task %d outside period", tk.ID)
		}
	}
}

func TestFilterByPeriod_EmptyPeriod(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, CreatedAt: time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)},
	}
	if got := FilterByPeriod(tasks, time.January, 2026); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestFilterByPeriod_UTCBoundary(t *testing.T) {
	// UTC 8 月 31 日 23:30 在东京本地时间已是 9 月 1 日，过滤必须按 UTC 判定。
	tokyo := time.FixedZone("JST", 9*3600)
	tasks := []model.Task{
		{ID: 1, CreatedAt: time.Date(2026, 9, 1, 8, 30, 0, 0, tokyo)},
	}
	if got := FilterByPeriod(tasks, time.August, 2026); len(got) != 1 {
		t.Fatalf("expected UTC-based match, got %d", len(got))
	}
}
