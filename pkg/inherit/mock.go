package inherit

import (
	"context"
	"errors"
	"sync"
)

// MockTrigger 可配置的资产释放 mock，实现 Trigger 接口
type MockTrigger struct {
	mu       sync.Mutex
	Released []int64

	// FailNext 置为 true 时，下一次调用返回 mock 错误并自动复位
	FailNext bool
}

func NewMockTrigger() *MockTrigger {
	return &MockTrigger{
		Released: make([]int64, 0),
	}
}

func (m *MockTrigger) BeginRelease(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNext {
		m.FailNext = false
		return errors.New("mock release failure")
	}

	m.Released = append(m.Released, userID)
	return nil
}

// ReleaseCount 并发安全地读取触发次数
func (m *MockTrigger) ReleaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Released)
}
