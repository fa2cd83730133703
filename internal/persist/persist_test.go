package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeSlice はテスト用のSlice。
type fakeSlice struct {
	name      string
	value     string
	listeners []func()
	restored  string
}

func (f *fakeSlice) SliceName() string { return f.name }

func (f *fakeSlice) Subscribe(fn func()) func() {
	f.listeners = append(f.listeners, fn)
	idx := len(f.listeners) - 1
	return func() { f.listeners[idx] = nil }
}

func (f *fakeSlice) MarshalSnapshot() (json.RawMessage, error) {
	return json.Marshal(map[string]string{"value": f.value})
}

func (f *fakeSlice) RestoreSnapshot(data json.RawMessage) error {
	var v map[string]string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.restored = v["value"]
	return nil
}

func (f *fakeSlice) set(v string) {
	f.value = v
	for _, l := range f.listeners {
		if l != nil {
			l()
		}
	}
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StorageKey() != "persist:root" || cfg.Version != 1 {
		t.Errorf("config = %+v", cfg)
	}
	for _, name := range []string{"auth", "profile", "authemployer"} {
		if !cfg.allowed(name) {
			t.Errorf("%s がホワイトリストにない", name)
		}
	}
}

func TestPersistor_AttachWritesWhitelistedSlices(t *testing.T) {
	var buf bytes.Buffer
	storage := NewMemoryStorage()
	p := NewPersistor(storage, DefaultConfig(), testLogger(&buf), nil)

	auth := &fakeSlice{name: "auth"}
	other := &fakeSlice{name: "ui"}
	p.Attach(auth, other)

	auth.set("token-1")
	other.set("ignored")

	data, err := storage.Get(context.Background(), "persist:root")
	if err != nil {
		t.Fatalf("スナップショットが書き込まれていない: %v", err)
	}
	var snap map[string]json.RawMessage
	json.Unmarshal(data, &snap)
	if _, ok := snap["ui"]; ok {
		t.Error("ホワイトリスト外のスライスを保存してはならない")
	}
	if !strings.Contains(string(snap["auth"]), "token-1") {
		t.Errorf("auth = %s", snap["auth"])
	}
	if !strings.Contains(string(snap["_persist"]), `"version":1`) {
		t.Errorf("_persist = %s", snap["_persist"])
	}
}

func TestPersistor_RestoreRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	storage := NewMemoryStorage()
	p := NewPersistor(storage, DefaultConfig(), testLogger(&buf), nil)
	src := &fakeSlice{name: "profile"}
	p.Attach(src)
	src.set("alice")

	dst := &fakeSlice{name: "profile"}
	if !NewPersistor(storage, DefaultConfig(), testLogger(&buf), nil).Restore(context.Background(), dst) {
		t.Fatal("Restore = false, want true")
	}
	if dst.restored != "alice" {
		t.Errorf("restored = %q, want alice", dst.restored)
	}
}

func TestPersistor_RestoreIgnoresBadSnapshots(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"JSONでない", "{{{"},
		{"バージョンなし", `{"profile":{"value":"x"}}`},
		{"バージョン違い", `{"profile":{"value":"x"},"_persist":{"version":2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			storage := NewMemoryStorage()
			storage.Set(context.Background(), "persist:root", []byte(tt.data))
			p := NewPersistor(storage, DefaultConfig(), testLogger(&buf), nil)

			s := &fakeSlice{name: "profile"}
			if p.Restore(context.Background(), s) {
				t.Error("Restore = true, want false")
			}
			if s.restored != "" {
				t.Errorf("restored = %q, want empty", s.restored)
			}
			if !strings.Contains(buf.String(), "WARN") {
				t.Error("警告ログが出力されていない")
			}
		})
	}
}

func TestPersistor_RestoreMissingSnapshot(t *testing.T) {
	var buf bytes.Buffer
	p := NewPersistor(NewMemoryStorage(), DefaultConfig(), testLogger(&buf), nil)
	if p.Restore(context.Background(), &fakeSlice{name: "auth"}) {
		t.Error("Restore = true, want false")
	}
	if buf.Len() != 0 {
		t.Errorf("スナップショットがないだけでログを出してはならない: %s", buf.String())
	}
}

func TestPersistor_DetachStopsWrites(t *testing.T) {
	var buf bytes.Buffer
	storage := NewMemoryStorage()
	p := NewPersistor(storage, DefaultConfig(), testLogger(&buf), nil)
	s := &fakeSlice{name: "auth"}
	detach := p.Attach(s)
	detach()

	s.set("x")
	if _, err := storage.Get(context.Background(), "persist:root"); !errors.Is(err, ErrNotFound) {
		t.Errorf("解除後に書き込まれた: %v", err)
	}
}

func TestPersistor_Written(t *testing.T) {
	var buf bytes.Buffer
	storage := NewMemoryStorage()
	p := NewPersistor(storage, DefaultConfig(), testLogger(&buf), nil)
	s := &fakeSlice{name: "auth"}
	p.Attach(s)

	if p.Written() {
		t.Fatal("書き込み前に Written = true")
	}
	s.set("x")
	if !p.Written() {
		t.Error("書き込み後に Written = false")
	}
}

func TestFileStorage_SetGetRemove(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatalf("NewFileStorage がエラーを返した: %v", err)
	}
	ctx := context.Background()

	if _, err := fs.Get(ctx, "authToken"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ErrNotFound を期待したが %v", err)
	}
	if err := fs.Set(ctx, "persist:root", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}
	got, err := fs.Get(ctx, "persist:root")
	if err != nil || string(got) != `{"a":1}` {
		t.Errorf("Get = %s, %v", got, err)
	}
	if err := fs.Remove(ctx, "persist:root"); err != nil {
		t.Errorf("Remove がエラーを返した: %v", err)
	}
	if err := fs.Remove(ctx, "persist:root"); err != nil {
		t.Errorf("存在しないキーの Remove はエラーにしない: %v", err)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "state"))
	if len(entries) != 0 {
		t.Errorf("一時ファイルが残っている: %v", entries)
	}
}

func TestFileStorage_RejectsPathKeys(t *testing.T) {
	fs, _ := NewFileStorage(t.TempDir())
	for _, key := range []string{"", "..", "../etc", `a\b`} {
		if err := fs.Set(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("key %q はエラーになるべき", key)
		}
	}
}

func TestNamespaced_IsolatesClients(t *testing.T) {
	inner := NewMemoryStorage()
	a := NewNamespaced(inner, "client-a")
	b := NewNamespaced(inner, "client-b")
	ctx := context.Background()

	a.Set(ctx, "authToken", []byte("ta"))
	if _, err := b.Get(ctx, "authToken"); !errors.Is(err, ErrNotFound) {
		t.Errorf("他のクライアントの値が見えている: %v", err)
	}
	if v, _ := inner.Get(ctx, "client-a:authToken"); string(v) != "ta" {
		t.Errorf("inner = %q", v)
	}
}
