package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

var auditLogDir = "."

// InitAuditLog sets the directory for per-user audit logs.
func InitAuditLog(dir string) error {
	if dir != "" {
		auditLogDir = dir
	}
	return os.MkdirAll(auditLogDir, 0755)
}

// getAuditLogPath returns the audit log file path for a user.
func getAuditLogPath(userID int64) string {
	return filepath.Join(auditLogDir, fmt.Sprintf("analysis_%d.log", userID))
}

// StartAuditLog truncates the log file for a user, starting a fresh round.
// Called when a new photo is staged.
func StartAuditLog(userID int64) {
	logPath := getAuditLogPath(userID)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Error().Err(err).Int64("userID", userID).Msg("failed to start audit log")
		return
	}
	defer f.Close()

	header := fmt.Sprintf("=== Analysis Log ===\nUser: %d\nStarted: %s\n\n",
		userID, time.Now().Format("2006-01-02 15:04:05"))
	f.WriteString(header)
}

// appendLog writes a log entry to the user's audit log file.
func appendLog(userID int64, prefix, msg string) {
	f, err := os.OpenFile(getAuditLogPath(userID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Error().Err(err).Int64("userID", userID).Msg("failed to write audit log")
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s %s\n", timestamp, prefix, msg)
	f.WriteString(line)
}

// LogUser logs a user message/action.
func LogUser(userID int64, format string, args ...any) {
	appendLog(userID, "USER    ", fmt.Sprintf(format, args...))
}

// LogBot logs a bot response.
func LogBot(userID int64, format string, args ...any) {
	appendLog(userID, "BOT     ", fmt.Sprintf(format, args...))
}

// LogAPI logs FishCast API calls.
func LogAPI(userID int64, format string, args ...any) {
	appendLog(userID, "API     ", fmt.Sprintf(format, args...))
}

// LogState logs staging state transitions.
func LogState(userID int64, format string, args ...any) {
	appendLog(userID, "STATE   ", fmt.Sprintf(format, args...))
}

// LogError logs errors.
func LogError(userID int64, format string, args ...any) {
	appendLog(userID, "ERROR   ", fmt.Sprintf(format, args...))
}
