// Package toast は一時的な通知（トースト）のストアを提供する。
package toast

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/metrics"
)

// DefaultDuration はヘルパーで追加するトーストの表示時間。
const DefaultDuration = 3000 * time.Millisecond

// Type はトーストの種別。
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
)

// Toast は1件の通知。
type Toast struct {
	ID       string
	Message  string
	Type     Type
	Duration time.Duration
}

// Persistent は自動で消えないトーストかを返す。
func (t Toast) Persistent() bool {
	return t.Duration <= 0
}

// timer は停止可能なタイマー。*time.Timerが満たす。
type timer interface {
	Stop() bool
}

// Store は1訪問者分のトーストを追加順に保持する。
// 各トーストのタイマーは独立しており、他のトーストの削除や期限切れの影響を受けない。
type Store struct {
	metrics   metrics.MetricsCollector
	afterFunc func(d time.Duration, f func()) timer

	mu     sync.Mutex
	toasts []Toast
	timers map[string]timer
	closed bool
}

// NewStore は新しいStoreを生成する。collectorがnilの場合は記録しない。
func NewStore(collector metrics.MetricsCollector) *Store {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Store{
		metrics: collector,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		timers: make(map[string]timer),
	}
}

// Add はトーストを追加し、そのIDを返す。
// durationが0以下の場合は明示的に閉じるまで残る。
func (s *Store) Add(message string, typ Type, duration time.Duration) string {
	t := Toast{
		ID:       uuid.NewString(),
		Message:  message,
		Type:     typ,
		Duration: duration,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return t.ID
	}
	s.toasts = append(s.toasts, t)
	if !t.Persistent() {
		id := t.ID
		s.timers[id] = s.afterFunc(duration, func() { s.Remove(id) })
	}
	s.metrics.RecordToast(string(typ))
	return t.ID
}

// Success は成功トーストを既定の表示時間で追加する。
func (s *Store) Success(message string) string {
	return s.Add(message, TypeSuccess, DefaultDuration)
}

// Error はエラートーストを既定の表示時間で追加する。
func (s *Store) Error(message string) string {
	return s.Add(message, TypeError, DefaultDuration)
}

// Info は情報トーストを既定の表示時間で追加する。
func (s *Store) Info(message string) string {
	return s.Add(message, TypeInfo, DefaultDuration)
}

// Warning は警告トーストを既定の表示時間で追加する。
func (s *Store) Warning(message string) string {
	return s.Add(message, TypeWarning, DefaultDuration)
}

// Remove はIDでトーストを削除する。存在しないIDは何もしない。
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tm, ok := s.timers[id]; ok {
		tm.Stop()
		delete(s.timers, id)
	}
	s.toasts = slices.DeleteFunc(s.toasts, func(t Toast) bool { return t.ID == id })
}

// List は現在のトーストを追加順で返す。
func (s *Store) List() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.toasts)
}

// Close はすべてのタイマーを停止し、以降の追加を無視する。
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tm := range s.timers {
		tm.Stop()
		delete(s.timers, id)
	}
	s.toasts = nil
	s.closed = true
}
