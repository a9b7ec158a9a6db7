package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// Logger represents a file logger for one engine session
type Logger struct {
	session string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// NewLogger creates a new file logger for the named session
func NewLogger(session string) (*Logger, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", session, timestamp)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		session: session,
		logFile: file,
		logger:  log.New(file, "", 0),
		logDir:  logDir,
	}

	l.writeSessionHeader()

	return l, nil
}

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() *Logger {
	return &Logger{
		session: "nop",
		logger:  log.New(io.Discard, "", 0),
		logDir:  "logs",
	}
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🚀 STRATEGY ENGINE SESSION STARTED
================================================================================
Session: %s
Started: %s
================================================================================
`, l.session, time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Println(fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs engine status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogSignal logs a generated signal with its sizing outcome
func (l *Logger) LogSignal(sig types.Signal, quantity float64) {
	l.Info("Signal %s %s %s strength=%.2f ref=%.4f qty=%.4f reason=%s",
		sig.StrategyID, sig.Action, sig.Instrument, sig.Strength, sig.ReferencePrice, quantity, sig.ReasonCode)
}

// LogOrderSubmission logs an order handed to the gateway
func (l *Logger) LogOrderSubmission(order types.OrderRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	tradeLog := fmt.Sprintf(`
[%s] [TRADE] ==================== ORDER SUBMITTED ====================
✅ Client Order ID: %s
📦 %s %.4f %s
💵 Est. Notional: $%.2f
🧭 Strategy: %s
=============================================================`,
		timestamp, order.ClientOrderID, order.Action, order.Quantity, order.Instrument,
		order.NotionalEstimate, order.StrategyID)

	l.logger.Println(tradeLog)
}

// LogExit logs a position exit decision
func (l *Logger) LogExit(pos *types.Position, reason types.ExitReason, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	exitLog := fmt.Sprintf(`
[%s] [TRADE] ==================== POSITION EXIT ====================
🚪 %s/%s reason=%s
🎯 Entry Price: $%.4f
📊 Exit Price: $%.4f
💹 Unrealized P&L: $%.2f
==============================================================`,
		timestamp, pos.Instrument, pos.StrategyID, reason, pos.EntryPrice, price, pos.UnrealizedPnL(price))

	l.logger.Println(exitLog)
}

// LogRejection logs an order rejected by the gate or the gateway
func (l *Logger) LogRejection(instrument, code, message string) {
	l.Warning("Order rejected for %s: %s (%s)", instrument, code, message)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		footer := fmt.Sprintf(`
================================================================================
🛑 STRATEGY ENGINE SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, timestamp)
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", l.session, timestamp)
	return filepath.Join(l.logDir, filename)
}
