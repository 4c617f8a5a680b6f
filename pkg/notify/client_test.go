package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"Heritage/config"
)

func TestInitFallsBackToMockOnBadProvider(t *testing.T) {
	config.Cfg.SMSProvider = "unsupported"

	require.Error(t, Init())

	// 初始化失败后降级为 mock，发送入口依然可用
	var s Sender
	require.NotPanics(t, func() { s = GetSender() })
	mock, ok := s.(*MockClient)
	require.True(t, ok)

	require.NoError(t, SendSingle(context.Background(), "13800138000", "sign", "SMS_001", `{"days":"30"}`))
	require.Equal(t, 1, mock.CallCount())
}
