package services

import (
	"github.com/stretchr/testify/mock"
)

// MockWebSocketHub is a mock for the WebSocketHub interface
type MockWebSocketHub struct {
	mock.Mock
}

func (m *MockWebSocketHub) Broadcast(messageType string, data interface{}) {
	m.Called(messageType, data)
}

func (m *MockWebSocketHub) BroadcastError(code, message string) {
	m.Called(code, message)
}
