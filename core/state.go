package core

// SessionState 表示录音会话状态
type SessionState string

const (
	StateUninitialized SessionState = "uninitialized"
	StateInitialized   SessionState = "initialized"
	StateCapturing     SessionState = "capturing"
	StateStopped       SessionState = "stopped"
)

func (s SessionState) String() string { return string(s) }

// canStart 初始化完成或已停止的会话可以再次开始采集
func (s SessionState) canStart() bool {
	return s == StateInitialized || s == StateStopped
}
