package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lisuiheng/voicecap/audio"
	"github.com/lisuiheng/voicecap/pkg/interfaces"
	"github.com/lisuiheng/voicecap/protocols/ogg"
	"github.com/lisuiheng/voicecap/protocols/websocket"
)

// rawSink 按包写入文件，每个 OPUS 包前加 2 字节大端长度
type rawSink struct {
	*os.File
}

func (s rawSink) Write(packet []byte) (int, error) {
	if len(packet) > math.MaxUint16 {
		return 0, fmt.Errorf("%w: packet of %d bytes", audio.ErrInputTooLarge, len(packet))
	}
	frame := make([]byte, 2+len(packet))
	binary.BigEndian.PutUint16(frame, uint16(len(packet)))
	copy(frame[2:], packet)
	if _, err := s.File.Write(frame); err != nil {
		return 0, err
	}
	return len(packet), nil
}

func (s rawSink) Kind() string { return "raw" }

// newSink 根据输出目标创建 sink：ws:// 与 wss:// 走 websocket，其余视为文件路径
func newSink(ctx context.Context, cfg Config, log *slog.Logger) (interfaces.Sink, error) {
	target := cfg.Output.Target
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		ws := websocket.NewWebSocketProtocol(websocket.Config{
			URL:          target,
			AccessToken:  cfg.Output.Websocket.AccessToken,
			DeviceID:     cfg.Output.Websocket.DeviceID,
			ClientID:     cfg.Output.Websocket.ClientID,
			MaxAttempts:  cfg.Output.Websocket.MaxAttempts,
			WriteTimeout: cfg.Output.Websocket.WriteTimeout,
			Audio: websocket.AudioParams{
				Format:        "opus",
				SampleRate:    cfg.Audio.SampleRate,
				Channels:      cfg.Audio.Channels,
				FrameDuration: int(audio.OpusFrameDuration.Milliseconds()),
			},
		}, log)
		if err := ws.Connect(ctx); err != nil {
			return nil, err
		}
		return ws, nil
	}

	if cfg.Output.Format != "raw" && cfg.Output.Format != "ogg" {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnsupportedSink, cfg.Output.Format)
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	if cfg.Output.Format == "raw" {
		return rawSink{file}, nil
	}
	w, err := ogg.New(file, cfg.Audio.SampleRate, cfg.Audio.Channels, audio.OpusFrameDuration)
	if err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}
