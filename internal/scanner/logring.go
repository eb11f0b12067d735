package scanner

import (
	"sync"
	"time"
)

const (
	logRingCap      = 200
	logThrottleSpan = 500 * time.Millisecond
)

// LogEntry 仪表盘活动日志条目
type LogEntry struct {
	At       time.Time `json:"at"`
	Icon     string    `json:"icon"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
}

// logRing 有界活动日志，按分类 500ms 节流
// 高频过滤日志只进环不进文件，避免淹没主日志
type logRing struct {
	mu        sync.Mutex
	entries   []LogEntry
	lastByCat map[string]time.Time
}

func newLogRing() *logRing {
	return &logRing{
		entries:   make([]LogEntry, 0, logRingCap),
		lastByCat: make(map[string]time.Time),
	}
}

// addThrottled 同分类 500ms 内只记一条
func (l *logRing) addThrottled(icon, category, message string) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastByCat[category]; ok && now.Sub(last) < logThrottleSpan {
		return
	}
	l.lastByCat[category] = now

	l.entries = append(l.entries, LogEntry{At: now, Icon: icon, Category: category, Message: message})
	if len(l.entries) > logRingCap {
		l.entries = l.entries[1:]
	}
}

// add 不节流（交易、熔断等关键事件）
func (l *logRing) add(icon, category, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{At: time.Now(), Icon: icon, Category: category, Message: message})
	if len(l.entries) > logRingCap {
		l.entries = l.entries[1:]
	}
}

// recent 返回当前环内容的副本
func (l *logRing) recent() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
