package postgres

import (
	"context"
	"testing"
	"time"
)

// Полный цикл up/down против живой базы. Количество шагов привязано
// к фактическому встроенному плану, а не к константе в тесте.
func TestMigrator_UpDownRoundTrip(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	plan, err := readMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("read embedded plan: %v", err)
	}
	total := len(plan)
	top := plan[total-1].Version

	assertStatus := func(stage string, wantVersion int64, wantCount int) {
		t.Helper()
		version, count, err := store.MigrationStatus(ctx)
		if err != nil {
			t.Fatalf("%s: status: %v", stage, err)
		}
		if version != wantVersion || count != wantCount {
			t.Fatalf("%s: version=%d count=%d, want version=%d count=%d",
				stage, version, count, wantVersion, wantCount)
		}
	}

	// Сначала чистое состояние.
	if err := store.MigrateDown(ctx, total+10); err != nil {
		t.Fatalf("reset: %v", err)
	}
	assertStatus("after reset", 0, 0)

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("up all: %v", err)
	}
	assertStatus("after up all", top, total)

	// Повторный up ничего не меняет.
	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("repeat up: %v", err)
	}
	assertStatus("after repeat up", top, total)

	if err := store.MigrateDown(ctx, 1); err != nil {
		t.Fatalf("down 1: %v", err)
	}
	assertStatus("after down 1", plan[total-2].Version, total-1)

	// steps<=0 трактуется как один шаг.
	for i := total - 1; i > 0; i-- {
		if err := store.MigrateDown(ctx, 0); err != nil {
			t.Fatalf("down default at %d: %v", i, err)
		}
	}
	assertStatus("after full teardown", 0, 0)

	// Откат пустой схемы не ошибка.
	if err := store.MigrateDown(ctx, 1); err != nil {
		t.Fatalf("down on empty: %v", err)
	}
}

func TestMigrator_NilStoreGuards(t *testing.T) {
	var nilStore *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := nilStore.MigrateUp(ctx, 0); err == nil {
		t.Fatal("expected error for nil store MigrateUp")
	}
	if err := nilStore.MigrateDown(ctx, 1); err == nil {
		t.Fatal("expected error for nil store MigrateDown")
	}
	if _, _, err := nilStore.MigrationStatus(ctx); err == nil {
		t.Fatal("expected error for nil store MigrationStatus")
	}
}
