package logger

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultCaptureLimit is the number of bytes a Capture keeps when no limit is configured.
const DefaultCaptureLimit = 1 << 20

const truncatedMarker = "... [log truncated]\n"

// Capture is an in-memory log sink bounded to a fixed number of bytes.
// Once the limit is reached further writes are dropped and a marker is appended.
type Capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

// NewCapture creates a sink keeping at most limit bytes.
func NewCapture(limit int) *Capture {
	if limit <= 0 {
		limit = DefaultCaptureLimit
	}
	return &Capture{limit: limit}
}

// Write implements io.Writer. It never fails so it can sit behind a MultiLevelWriter.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.truncated {
		return len(p), nil
	}
	room := c.limit - c.buf.Len()
	if len(p) > room {
		c.buf.Write(p[:max(room, 0)])
		c.buf.WriteString(truncatedMarker)
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

// String returns everything captured so far.
func (c *Capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Len returns the number of captured bytes.
func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

// Discard drops everything captured and releases the buffer.
func (c *Capture) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = bytes.Buffer{}
	c.truncated = false
}

// Logger returns a logger that writes plain console lines into the capture and,
// when parent is not nil, also to the parent's output. The level is taken from parent.
func (c *Capture) Logger(parent *Logger, serviceName string) *Logger {
	level := zerolog.InfoLevel
	if parent != nil {
		level = parent.level
	}
	capCfg := &Config{Level: level.String(), Format: FormatConsole, NoColor: true, Timestamp: true}
	captured := NewWithWriter(capCfg, serviceName, c)
	if parent == nil || parent.out == nil {
		return captured
	}
	out := zerolog.MultiLevelWriter(parent.out, consoleWriter(c, true, serviceName))
	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{logger: zl, service: serviceName, out: out, level: level}
}
