package ogg

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/lisuiheng/voicecap/pkg/interfaces"
)

type closeRecorder struct {
	bytes.Buffer
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestWriterHeaders(t *testing.T) {
	var buf bytes.Buffer
	if _, err := New(&buf, 16000, 1, 20*time.Millisecond); err != nil {
		t.Fatalf("New failed: %v", err)
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte("OggS")) {
		t.Fatal("stream does not start with an Ogg page")
	}
	if !bytes.Contains(data, []byte("OpusHead")) || !bytes.Contains(data, []byte("OpusTags")) {
		t.Fatal("missing Opus header pages")
	}
}

func TestWriterPackets(t *testing.T) {
	out := &closeRecorder{}
	w, err := New(out, 16000, 1, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if w.increment != 960 {
		t.Fatalf("expected 960 ticks per 20ms packet, got %d", w.increment)
	}
	headerLen := out.Len()

	packet := []byte{0xf8, 0xff, 0xfe, 0x42}
	for i := 0; i < 3; i++ {
		n, err := w.Write(packet)
		if err != nil || n != len(packet) {
			t.Fatalf("Write = %d, %v", n, err)
		}
	}
	if n, err := w.Write(nil); n != 0 || err != nil {
		t.Fatalf("empty Write = %d, %v", n, err)
	}

	body := out.Bytes()[headerLen:]
	if got := bytes.Count(body, []byte("OggS")); got != 3 {
		t.Fatalf("expected 3 data pages, got %d", got)
	}
	if got := bytes.Count(body, packet); got != 3 {
		t.Fatalf("expected 3 packets in the stream, got %d", got)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if out.closed != 1 {
		t.Fatalf("expected underlying writer closed once, got %d", out.closed)
	}
	if _, err := w.Write(packet); !errors.Is(err, interfaces.ErrSinkClosed) {
		t.Fatalf("expected ErrSinkClosed, got %v", err)
	}
}

func TestWriterRejectsZeroFrameDuration(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, 16000, 1, 0); err == nil {
		t.Fatal("expected an error for a zero frame duration")
	}
}
