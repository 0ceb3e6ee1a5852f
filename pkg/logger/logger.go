package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/transitwatch/transitwatch/pkg/utils"
)

// SessionRecord captures the lifecycle of one login session
type SessionRecord struct {
	SessionID     string     `json:"session_id"`
	Email         string     `json:"email,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Resumed       bool       `json:"resumed,omitempty"`
	RefreshCount  int        `json:"refresh_count"`
	LastRefreshAt *time.Time `json:"last_refresh_at,omitempty"`
}

// Logger records session lifecycle events as JSON files, one per session
type Logger struct {
	logDir  string
	mu      sync.Mutex
	current *SessionRecord
}

// NewLogger creates a logger writing into logDir. An empty logDir falls
// back to the TRANSITWATCH_LOG_DIR environment variable, then ./logs.
func NewLogger(logDir string) *Logger {
	if logDir == "" {
		logDir = os.Getenv("TRANSITWATCH_LOG_DIR")
	}
	if logDir == "" {
		logDir = "./logs"
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("Failed to create log directory %s: %v", logDir, err)
	}

	return &Logger{logDir: logDir}
}

// SessionStarted records a fresh login
func (l *Logger) SessionStarted(email string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current = &SessionRecord{
		SessionID: uuid.NewString(),
		Email:     email,
		StartedAt: time.Now(),
	}
	l.write(l.current)
}

// SessionResumed records a session silently re-established from a still
// valid session credential at startup
func (l *Logger) SessionResumed() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.current = &SessionRecord{
		SessionID:     uuid.NewString(),
		StartedAt:     now,
		Resumed:       true,
		RefreshCount:  1,
		LastRefreshAt: &now,
	}
	l.write(l.current)
}

// SessionRefreshed records a successful token refresh within the current session
func (l *Logger) SessionRefreshed() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return
	}
	now := time.Now()
	l.current.RefreshCount++
	l.current.LastRefreshAt = &now
	l.write(l.current)
}

// SessionEnded records a logout or a refresh failure that terminated the session
func (l *Logger) SessionEnded() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return
	}
	now := time.Now()
	l.current.EndedAt = &now
	l.write(l.current)
	l.current = nil
}

func (l *Logger) write(record *SessionRecord) {
	filePath := filepath.Join(l.logDir, fmt.Sprintf("%s.json", record.SessionID))
	if err := utils.WriteJSONFile(filePath, record, 0644); err != nil {
		log.Printf("Failed to write session log to %s: %v", filePath, err)
	}
}
