// Package profile はログイン中の求職者プロフィールの保持と、プロフィール画面の操作を提供する。
package profile

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hitoshi/jobportal/internal/model"
)

// SliceName はスナップショット内のプロフィールのスライス名。
const SliceName = "profile"

// Store はプロフィールの射影を保持する。ネットワーク呼び出しは行わない。
type Store struct {
	mu        sync.Mutex
	profile   model.Profile
	listeners map[int]func()
	nextID    int
}

// NewStore は既定値のプロフィールを持つStoreを生成する。
func NewStore() *Store {
	return &Store{
		profile:   model.DefaultProfile(),
		listeners: make(map[int]func()),
	}
}

// Set はプロフィール全体を置き換える。
func (s *Store) Set(p model.Profile) {
	s.update(func(cur *model.Profile) { *cur = p })
}

// Clear はプロフィールを既定値に戻す。
func (s *Store) Clear() {
	s.update(func(cur *model.Profile) { *cur = model.DefaultProfile() })
}

// Get は現在のプロフィールを返す。
func (s *Store) Get() model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// NeedsCreation はプロフィールが未作成かを返す。
// trueの場合、画面は空のフォームではなく作成導線を表示する。
func (s *Store) NeedsCreation() bool {
	return s.Get().IsEmpty()
}

// Restore は永続化されたプロフィールでストアを初期化する。
func (s *Store) Restore(p model.Profile) {
	s.Set(p)
}

// Subscribe は変更の購読者を登録し、解除用の関数を返す。
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SliceName はスナップショット内のスライス名を返す。
func (s *Store) SliceName() string {
	return SliceName
}

// MarshalSnapshot はプロフィールをJSONにする。
func (s *Store) MarshalSnapshot() (json.RawMessage, error) {
	return json.Marshal(s.Get())
}

// RestoreSnapshot はJSONからプロフィールを復元する。
// 欠けた項目は既定値のまま残る。
func (s *Store) RestoreSnapshot(data json.RawMessage) error {
	p := model.DefaultProfile()
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid profile snapshot: %w", err)
	}
	s.Restore(p)
	return nil
}

func (s *Store) update(fn func(*model.Profile)) {
	s.mu.Lock()
	fn(&s.profile)
	listeners := make([]func(), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}
