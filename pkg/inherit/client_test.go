package inherit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"Heritage/config"
)

func TestInitFallsBackToMockWithoutWebhookURL(t *testing.T) {
	config.Cfg.InheritanceProvider = "webhook"
	config.Cfg.InheritanceWebhookURL = ""

	require.Error(t, Init())

	// 缺失 webhook 地址时降级为 mock，触发入口依然可用
	var tr Trigger
	require.NotPanics(t, func() { tr = GetTrigger() })
	mock, ok := tr.(*MockTrigger)
	require.True(t, ok)

	require.NoError(t, tr.BeginRelease(context.Background(), 42))
	require.Equal(t, 1, mock.ReleaseCount())
}
