package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"taskkeeper/internal/model"
	"taskkeeper/internal/pkg/metrics"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) uint {
	t.Helper()
	u := model.User{Email: email, Password: "hash"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func seedTask(t *testing.T, db *gorm.DB, ownerID uint, title string) uint {
	t.Helper()
	tk := model.Task{UserID: ownerID, Title: title}
	if err := db.Create(&tk).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return tk.ID
}

func TestStore_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")
	bobTask := seedTask(t, db, bob, "bob's task")

	if _, err := store.Get(ctx, alice, bobTask); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner get must be not found, got %v", err)
	}
	if err := store.Delete(ctx, alice, bobTask); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner delete must be not found, got %v", err)
	}

	// 跨用户 Update 不得有任何效果
	if _, err := store.Update(ctx, alice, bobTask, map[string]interface{}{"title": "hijacked"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner update must be not found, got %v", err)
	}
	got, err := store.Get(ctx, bob, bobTask)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "bob's task" {
		t.Fatalf("task was mutated across owners: %q", got.Title)
	}
}

func TestStore_OwnerImmutable(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics.InitMetrics()
	m := NewManager(store, nil, logger, time.Second)

	owner := seedUser(t, db, "owner@example.com")
	taskID := seedTask(t, db, owner, "mine")

	title := "renamed"
	if _, err := m.Update(ctx, owner, taskID, UpdateRequest{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := m.Archive(ctx, owner, taskID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := m.Restore(ctx, owner, taskID); err != nil {
		t.Fatalf("restore: %v", err)
	}

	got, err := store.Get(ctx, owner, taskID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != owner {
		t.Fatalf("owner changed: %d", got.UserID)
	}
}

func TestStore_ListExcludesArchived(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	owner := seedUser(t, db, "owner@example.com")
	seedTask(t, db, owner, "active")
	archivedID := seedTask(t, db, owner, "archived")
	if _, err := store.Update(ctx, owner, archivedID, map[string]interface{}{"is_archived": true}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	visible, err := store.List(ctx, owner, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 1 || visible[0].Title != "active" {
		t.Fatalf("default list must exclude archived, got %+v", visible)
	}
	for _, tk := range visible {
		if tk.IsArchived {
			t.Fatalf("archived task leaked into default list")
		}
	}

	all, err := store.List(ctx, owner, true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks with includeArchived, got %d", len(all))
	}
}

func TestManager_ArchiveRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics.InitMetrics()
	m := NewManager(store, nil, logger, time.Second)

	owner := seedUser(t, db, "owner@example.com")
	taskID := seedTask(t, db, owner, "roundtrip")
	if _, err := m.ToggleComplete(ctx, owner, taskID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := m.Archive(ctx, owner, taskID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	restored, err := m.Restore(ctx, owner, taskID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if restored.IsArchived {
		t.Fatalf("task still archived after restore")
	}
	if !restored.Completed {
		t.Fatalf("completed flag must survive archive/restore round trip")
	}

	visible, err := m.List(ctx, owner, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != taskID {
		t.Fatalf("restored task must be visible again, got %+v", visible)
	}
}

func TestManager_DeleteRemovesPermanently(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics.InitMetrics()
	m := NewManager(store, nil, logger, time.Second)

	owner := seedUser(t, db, "owner@example.com")
	taskID := seedTask(t, db, owner, "doomed")

	if err := m.Delete(ctx, owner, taskID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, owner, taskID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete must be not found, got %v", err)
	}
}
