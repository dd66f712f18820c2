// Audit logging: structured, append-only JSON events for the protocol
// enforcer's bypass/context-check trail and other events worth auditing
// independently of the regular category logs.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies the kind of audited event.
type AuditEventType string

const (
	AuditContextCheckIssued   AuditEventType = "context_check_issued"
	AuditContextCheckVerified AuditEventType = "context_check_verified"
	AuditBypass               AuditEventType = "bypass"
	AuditMemoryStore          AuditEventType = "memory_store"
	AuditMemoryRecall         AuditEventType = "memory_recall"
	AuditRuleViolation        AuditEventType = "rule_violation"
	AuditPreCommitCheck       AuditEventType = "pre_commit_check"
)

// AuditEvent is one structured, append-only record.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	SessionID  string                 `json:"session,omitempty"`
	ProjectPath string                `json:"project_path,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit opens the audit log file under logsDir. No-op if debug mode is off.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))
	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditLogger is a session/project-scoped handle for writing AuditEvents.
type AuditLogger struct {
	sessionID   string
	projectPath string
}

// AuditWithSession scopes audit events to sessionID and projectPath.
func AuditWithSession(sessionID, projectPath string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID, projectPath: projectPath}
}

// Log appends event to the audit file, filling in session/project defaults.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}
	if event.ProjectPath == "" {
		event.ProjectPath = a.projectPath
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.WriteString(string(data) + "\n")
}

// ContextCheckIssued logs a preflight token issuance.
func (a *AuditLogger) ContextCheckIssued(action string) {
	a.Log(AuditEvent{
		EventType: AuditContextCheckIssued,
		Target:    action,
		Success:   true,
		Message:   fmt.Sprintf("context-check token issued for %s", action),
	})
}

// ContextCheckVerified logs a preflight token verification outcome.
func (a *AuditLogger) ContextCheckVerified(action string, ok bool, reason string) {
	a.Log(AuditEvent{
		EventType: AuditContextCheckVerified,
		Target:    action,
		Success:   ok,
		Error:     reason,
		Message:   fmt.Sprintf("context-check verify for %s: ok=%v", action, ok),
	})
}

// Bypass logs a protocol bypass (an action taken without a valid token).
func (a *AuditLogger) Bypass(action, reason string) {
	a.Log(AuditEvent{
		EventType: AuditBypass,
		Target:    action,
		Success:   false,
		Message:   fmt.Sprintf("bypassed %s: %s", action, reason),
		Fields:    map[string]interface{}{"reason": reason},
	})
}

// MemoryEvent logs a store or recall operation.
func (a *AuditLogger) MemoryEvent(eventType AuditEventType, target string, durationMs int64, success bool) {
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     target,
		Success:    success,
		DurationMs: durationMs,
		Message:    fmt.Sprintf("%s: %s (%dms, success=%v)", eventType, target, durationMs, success),
	})
}

// RuleViolation logs a rule check finding an active violation.
func (a *AuditLogger) RuleViolation(ruleID string, content string) {
	a.Log(AuditEvent{
		EventType: AuditRuleViolation,
		Target:    ruleID,
		Success:   false,
		Message:   fmt.Sprintf("rule %s flagged: %s", ruleID, content),
	})
}

// PreCommitCheck logs a pre-commit staged-files advisory run.
func (a *AuditLogger) PreCommitCheck(fileCount int, warningCount int) {
	a.Log(AuditEvent{
		EventType: AuditPreCommitCheck,
		Success:   warningCount == 0,
		Fields:    map[string]interface{}{"files": fileCount, "warnings": warningCount},
		Message:   fmt.Sprintf("pre-commit check: %d files, %d warnings", fileCount, warningCount),
	})
}
