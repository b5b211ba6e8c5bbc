// protocols/websocket/transport.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lisuiheng/voicecap/pkg/interfaces"
	"github.com/lisuiheng/voicecap/utils"
)

var _ interfaces.Sink = (*WSProtocol)(nil)

// WSProtocol 将编码后的音频块作为二进制消息推送到 websocket 服务端
type WSProtocol struct {
	conn      *websocket.Conn
	config    Config
	closeChan chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	logger    *slog.Logger
}

// Config 定义websocket特有的配置
type Config struct {
	URL             string
	AccessToken     string
	DeviceID        string
	ClientID        string
	ProtocolVersion int
	MaxAttempts     int
	WriteTimeout    time.Duration
	Audio           AudioParams
}

// AudioParams 随 hello 消息发送的音频参数
type AudioParams struct {
	Format        string `json:"format"`
	SampleRate    int    `json:"sample_rate"`
	Channels      int    `json:"channels"`
	FrameDuration int    `json:"frame_duration"`
}

type helloMessage struct {
	Type        string      `json:"type"`
	Version     int         `json:"version"`
	Transport   string      `json:"transport"`
	AudioParams AudioParams `json:"audio_params"`
}

func NewWebSocketProtocol(config Config, logger *slog.Logger) *WSProtocol {
	if config.ProtocolVersion == 0 {
		config.ProtocolVersion = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSProtocol{
		config:    config,
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Connect 建立连接并发送 hello，失败时按指数退避重试
func (p *WSProtocol) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	headers := http.Header{}
	if p.config.AccessToken != "" {
		headers.Set("Authorization", fmt.Sprintf("Bearer %s", p.config.AccessToken))
	}
	headers.Set("Protocol-Version", fmt.Sprintf("%d", p.config.ProtocolVersion))
	if p.config.DeviceID != "" {
		headers.Set("Device-Id", p.config.DeviceID)
	}
	if p.config.ClientID != "" {
		headers.Set("Client-Id", p.config.ClientID)
	}

	backoff := utils.NewExponentialBackoff()
	var lastErr error
	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.config.URL, headers)
		if err == nil {
			p.conn = conn
			break
		}
		lastErr = err
		p.logger.Warn("Websocket dial failed", "url", p.config.URL, "attempt", attempt, "error", err)
		if attempt == p.config.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", interfaces.ErrConnectionFailed, ctx.Err())
		case <-time.After(backoff.NextDelay()):
		}
	}
	if p.conn == nil {
		return fmt.Errorf("%w: %v", interfaces.ErrConnectionFailed, lastErr)
	}

	hello, err := json.Marshal(helloMessage{
		Type:        "hello",
		Version:     p.config.ProtocolVersion,
		Transport:   "websocket",
		AudioParams: p.config.Audio,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal hello message: %w", err)
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("failed to send hello message: %w", err)
	}

	go p.readPump(p.conn)
	p.logger.Info("Websocket sink connected", "url", p.config.URL)
	return nil
}

// readPump 处理控制帧，服务端文本消息只记录日志
func (p *WSProtocol) readPump(conn *websocket.Conn) {
	defer close(p.done)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-p.closeChan:
			default:
				p.logger.Debug("Websocket read loop ended", "error", err)
			}
			return
		}
		if msgType == websocket.TextMessage {
			p.logger.Debug("Received server message", "message", string(data))
		}
	}
}

// Write 将一个编码块作为二进制消息发送
func (p *WSProtocol) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return 0, interfaces.ErrConnectionFailed
	}
	select {
	case <-p.closeChan:
		return 0, interfaces.ErrSinkClosed
	default:
	}

	if p.config.WriteTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.config.WriteTimeout))
	}
	if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (p *WSProtocol) Kind() string { return "websocket" }

func (p *WSProtocol) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closeChan)

		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = conn.Close()
		<-p.done
	})
	return err
}
