package artifact

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/interpreter/internal/config"
)

// setupTestStore はインメモリSQLiteのStoreを作成する。nowは固定時刻を返す。
func setupTestStore(t *testing.T, ttl time.Duration) (*SQLiteStore, *time.Time) {
	t.Helper()

	store, err := OpenSQLite(context.Background(), ":memory:", ttl, nil)
	if err != nil {
		t.Fatalf("インメモリSQLiteの接続に失敗: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	return store, &clock
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	t.Run("保存したアーティファクトをIDで取得できること", func(t *testing.T) {
		t.Parallel()

		store, _ := setupTestStore(t, 10*time.Minute)
		ctx := context.Background()

		a := &Artifact{ContentType: "audio/mp3", Data: []byte("mp3-bytes")}
		if err := store.Save(ctx, a); err != nil {
			t.Fatalf("Save()でエラーが発生: %v", err)
		}
		if !validID(a.ID) {
			t.Errorf("IDが採番されていない: %q", a.ID)
		}

		got, err := store.Get(ctx, a.ID)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if string(got.Data) != "mp3-bytes" || got.ContentType != "audio/mp3" {
			t.Errorf("Get() = %+v", got)
		}
		if !got.CreatedAt.Equal(a.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, a.CreatedAt)
		}
	})

	t.Run("存在しないIDや不正なIDはErrNotFoundになること", func(t *testing.T) {
		t.Parallel()

		store, _ := setupTestStore(t, 10*time.Minute)
		ctx := context.Background()

		for _, id := range []string{NewID(), "not-a-uuid", "", "../etc/passwd"} {
			if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(%q) err = %v, want ErrNotFound", id, err)
			}
		}
	})

	t.Run("同時に保存しても互いの音声を上書きしないこと", func(t *testing.T) {
		t.Parallel()

		store, _ := setupTestStore(t, 10*time.Minute)
		ctx := context.Background()

		const n = 10
		ids := make([]string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a := &Artifact{ContentType: "audio/mp3", Data: []byte{byte(i)}}
				if err := store.Save(ctx, a); err != nil {
					t.Errorf("Save()でエラーが発生: %v", err)
					return
				}
				ids[i] = a.ID
			}(i)
		}
		wg.Wait()

		for i, id := range ids {
			got, err := store.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get(%q)でエラーが発生: %v", id, err)
			}
			if len(got.Data) != 1 || got.Data[0] != byte(i) {
				t.Errorf("Get(%q).Data = %v, want [%d]", id, got.Data, i)
			}
		}
	})

	t.Run("最新のアーティファクトが取得できること", func(t *testing.T) {
		t.Parallel()

		store, clock := setupTestStore(t, 10*time.Minute)
		ctx := context.Background()

		if _, err := store.Latest(ctx); !errors.Is(err, ErrNotFound) {
			t.Errorf("空の場合のLatest() err = %v, want ErrNotFound", err)
		}

		first := &Artifact{ContentType: "audio/mp3", Data: []byte("first"), CreatedAt: clock.Add(-2 * time.Minute)}
		second := &Artifact{ContentType: "audio/mp3", Data: []byte("second"), CreatedAt: clock.Add(-1 * time.Minute)}
		for _, a := range []*Artifact{second, first} {
			if err := store.Save(ctx, a); err != nil {
				t.Fatalf("Save()でエラーが発生: %v", err)
			}
		}

		got, err := store.Latest(ctx)
		if err != nil {
			t.Fatalf("Latest()でエラーが発生: %v", err)
		}
		if got.ID != second.ID {
			t.Errorf("Latest().ID = %q, want %q", got.ID, second.ID)
		}
	})

	t.Run("保持期間を過ぎたアーティファクトは取得できないこと", func(t *testing.T) {
		t.Parallel()

		store, clock := setupTestStore(t, 10*time.Minute)
		ctx := context.Background()

		old := &Artifact{ContentType: "audio/mp3", Data: []byte("old"), CreatedAt: clock.Add(-11 * time.Minute)}
		if err := store.Save(ctx, old); err != nil {
			t.Fatalf("Save()でエラーが発生: %v", err)
		}
		if _, err := store.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() err = %v, want ErrNotFound", err)
		}
		if _, err := store.Latest(ctx); !errors.Is(err, ErrNotFound) {
			t.Errorf("Latest() err = %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteExpiredで古いアーティファクトだけが削除されること", func(t *testing.T) {
		t.Parallel()

		store, clock := setupTestStore(t, time.Hour)
		ctx := context.Background()

		old := &Artifact{ContentType: "audio/mp3", Data: []byte("old"), CreatedAt: clock.Add(-30 * time.Minute)}
		fresh := &Artifact{ContentType: "audio/mp3", Data: []byte("fresh")}
		for _, a := range []*Artifact{old, fresh} {
			if err := store.Save(ctx, a); err != nil {
				t.Fatalf("Save()でエラーが発生: %v", err)
			}
		}

		n, err := store.DeleteExpired(ctx, clock.Add(-10*time.Minute))
		if err != nil {
			t.Fatalf("DeleteExpired()でエラーが発生: %v", err)
		}
		if n != 1 {
			t.Errorf("削除件数 = %d, want 1", n)
		}
		if _, err := store.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("削除済みのGet() err = %v, want ErrNotFound", err)
		}
		if _, err := store.Get(ctx, fresh.ID); err != nil {
			t.Errorf("残っているべきGet()でエラーが発生: %v", err)
		}
	})

	t.Run("不正なIDでは保存できないこと", func(t *testing.T) {
		t.Parallel()

		store, _ := setupTestStore(t, time.Minute)
		if err := store.Save(context.Background(), &Artifact{ID: "abc"}); err == nil {
			t.Error("エラーが返されるべき")
		}
		if err := store.Save(context.Background(), nil); err == nil {
			t.Error("nilの場合はエラーが返されるべき")
		}
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("sqliteバックエンドが開けること", func(t *testing.T) {
		t.Parallel()

		store, err := Open(context.Background(), config.ArtifactConfig{
			Backend: config.BackendSQLite,
			DBPath:  ":memory:",
			TTL:     time.Minute,
		}, nil)
		if err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}
		defer store.Close()

		if _, ok := store.(*SQLiteStore); !ok {
			t.Errorf("Open() = %T, want *SQLiteStore", store)
		}
	})

	t.Run("未対応のバックエンドはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Open(context.Background(), config.ArtifactConfig{Backend: "redis"}, nil); err == nil {
			t.Error("エラーが返されるべき")
		}
	})
}

type countingEvictions struct {
	mu    sync.Mutex
	total int
}

func (c *countingEvictions) AddEvicted(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += n
}

func (c *countingEvictions) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func TestJanitor(t *testing.T) {
	t.Parallel()

	t.Run("Sweepで期限切れが削除され件数が記録されること", func(t *testing.T) {
		t.Parallel()

		store, clock := setupTestStore(t, 10*time.Minute)
		ctx := context.Background()

		for _, created := range []time.Time{clock.Add(-20 * time.Minute), clock.Add(-15 * time.Minute), *clock} {
			if err := store.Save(ctx, &Artifact{ContentType: "audio/mp3", Data: []byte("x"), CreatedAt: created}); err != nil {
				t.Fatalf("Save()でエラーが発生: %v", err)
			}
		}

		counter := &countingEvictions{}
		j := NewJanitor(store, 10*time.Minute, time.Minute, nil, counter)
		j.now = store.now

		n, err := j.Sweep(ctx)
		if err != nil {
			t.Fatalf("Sweep()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("削除件数 = %d, want 2", n)
		}
		if counter.get() != 2 {
			t.Errorf("記録件数 = %d, want 2", counter.get())
		}
	})

	t.Run("Startで定期的に削除されStopで停止すること", func(t *testing.T) {
		t.Parallel()

		store, clock := setupTestStore(t, time.Minute)
		ctx := context.Background()

		if err := store.Save(ctx, &Artifact{ContentType: "audio/mp3", Data: []byte("x"), CreatedAt: clock.Add(-time.Hour)}); err != nil {
			t.Fatalf("Save()でエラーが発生: %v", err)
		}

		counter := &countingEvictions{}
		j := NewJanitor(store, time.Minute, 10*time.Millisecond, nil, counter)
		j.now = store.now
		j.Start(ctx)

		deadline := time.Now().Add(2 * time.Second)
		for counter.get() == 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		j.Stop()
		j.Stop()

		if counter.get() != 1 {
			t.Errorf("記録件数 = %d, want 1", counter.get())
		}
	})

	t.Run("Startを2回呼んでもゴルーチンは1つだけ起動すること", func(t *testing.T) {
		t.Parallel()

		store, _ := setupTestStore(t, time.Minute)
		j := NewJanitor(store, time.Minute, time.Minute, nil, nil)
		j.Start(context.Background())
		j.Start(context.Background())

		stopped := make(chan struct{})
		go func() {
			j.Stop()
			j.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("Stopが終了しない")
		}
	})

	t.Run("Startせずに Stopしてもブロックしないこと", func(t *testing.T) {
		t.Parallel()

		store, _ := setupTestStore(t, time.Minute)
		NewJanitor(store, time.Minute, time.Minute, nil, nil).Stop()
	})
}
