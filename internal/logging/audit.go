// Package logging provides audit logging that outputs structured, line-delimited
// JSON events describing fact-graph activity: saves, purges, observer lifecycle
// transitions, and query/invert evaluation.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event.
type AuditEventType string

const (
	// Fact store events
	AuditFactSaved    AuditEventType = "fact_saved"
	AuditFactRejected AuditEventType = "fact_rejected"
	AuditFactRead     AuditEventType = "fact_read"

	// Purge events
	AuditPurgeRun     AuditEventType = "purge_run"
	AuditPurgeTrigger AuditEventType = "purge_trigger"
	AuditPurgeBlocked AuditEventType = "purge_blocked"

	// Observer lifecycle events
	AuditObserverStart    AuditEventType = "observer_start"
	AuditObserverLoaded   AuditEventType = "observer_loaded"
	AuditObserverNotify   AuditEventType = "observer_notify"
	AuditObserverStop     AuditEventType = "observer_stop"
	AuditObserverError    AuditEventType = "observer_error"
	AuditObserverState    AuditEventType = "observer_state"

	// Query/invert evaluation events
	AuditQueryEval    AuditEventType = "query_eval"
	AuditInvertDerive AuditEventType = "invert_derive"

	// Ingest events
	AuditIngestTail  AuditEventType = "ingest_tail"
	AuditIngestError AuditEventType = "ingest_error"

	// Generic build/CLI errors
	AuditBuildError AuditEventType = "build_error"

	// AuditRunStart marks the first line of a process run. Written by
	// InitAudit itself so the file stays valid JSONL from its very first
	// byte instead of opening with a "#"-style comment a line-oriented
	// reader would choke on.
	AuditRunStart AuditEventType = "run_start"
)

// =============================================================================
// AUDIT EVENT STRUCTURE
// =============================================================================

// AuditEvent represents a structured audit log entry.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	Category   string                 `json:"cat"`
	ObserverID string                 `json:"observer,omitempty"`
	RequestID  string                 `json:"req,omitempty"`
	Target     string                 `json:"target"` // fact hash, type name, or spec name
	Action     string                 `json:"action"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
	auditOnce   sync.Once
)

// AuditLogger handles structured audit logging for a store/observer session.
type AuditLogger struct {
	observerID string
	category   Category
}

// InitAudit opens the audit log for this process run. The file is one
// fact-graph run's worth of JSONL, not a daily bucket: a factgraphctl
// invocation is a single query/watch/check, so there is no rotation
// concern the way a resident daemon would have.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	if auditFile != nil {
		auditMu.Unlock()
		return nil
	}

	auditPath := filepath.Join(logsDir, "audit.jsonl")
	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		auditMu.Unlock()
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	auditMu.Unlock()

	// Log acquires auditMu itself, so the handoff above has to happen
	// before calling it, not inside a single held critical section.
	Audit().Log(AuditEvent{
		EventType: AuditRunStart,
		Success:   true,
		Message:   fmt.Sprintf("audit run started pid=%d", os.Getpid()),
	})

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

// Audit returns the global audit logger, built exactly once regardless of
// how many goroutines call it concurrently (store saves, observer
// dispatch, and purge triggers can all reach here from different
// goroutines within the same run).
func Audit() *AuditLogger {
	auditOnce.Do(func() { auditLogger = &AuditLogger{} })
	return auditLogger
}

// AuditWithObserver creates an audit logger scoped to an observer.
func AuditWithObserver(observerID string) *AuditLogger {
	return &AuditLogger{observerID: observerID}
}

// AuditWithContext creates a fully-scoped audit logger.
func AuditWithContext(observerID string, category Category) *AuditLogger {
	return &AuditLogger{observerID: observerID, category: category}
}

// =============================================================================
// AUDIT LOGGING METHODS
// =============================================================================

// Log writes an audit event. Marshaling happens outside the file lock:
// building the JSON bytes is pure CPU work, and store saves, observer
// dispatch, and purge triggers can all be calling Log from different
// goroutines in the same run, so only the shared file handle needs
// serializing, not the encoding.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.ObserverID == "" {
		event.ObserverID = a.observerID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}

	data, err := json.Marshal(event)
	if err != nil {
		CLIError("audit: failed to marshal %s event: %v", event.EventType, err)
		return
	}
	data = append(data, '\n')

	auditMu.Lock()
	defer auditMu.Unlock()
	auditFile.Write(data)
}

// escapeBraces rewrites newline, carriage return and tab in a reason string
// from PurgeBlocked as \n, \r and \t, so the human-readable Message field
// stays on one line in a plain tail -f. Every other character, quotes and
// backslashes included, is left as is; the Target/Error fields carry the
// raw text for anything machine-parsing the JSONL.
func escapeBraces(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// FactSaved logs a successful fact save.
func (a *AuditLogger) FactSaved(hash, typeName string) {
	a.Log(AuditEvent{
		EventType: AuditFactSaved,
		Target:    hash,
		Success:   true,
		Fields:    map[string]interface{}{"type": typeName},
		Message:   fmt.Sprintf("fact saved: %s (%s)", hash, typeName),
	})
}

// FactRejected logs a fact that failed validation (dangling predecessor, schema mismatch).
func (a *AuditLogger) FactRejected(hash, typeName, reason string) {
	a.Log(AuditEvent{
		EventType: AuditFactRejected,
		Target:    hash,
		Success:   false,
		Error:     reason,
		Fields:    map[string]interface{}{"type": typeName},
		Message:   fmt.Sprintf("fact rejected: %s (%s): %s", hash, typeName, reason),
	})
}

// PurgeRun logs completion of a purge sweep.
func (a *AuditLogger) PurgeRun(rootType string, removed int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditPurgeRun,
		Target:     rootType,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"removed": removed},
		Message:    fmt.Sprintf("purge run: root=%s removed=%d (%dms)", rootType, removed, durationMs),
	})
}

// PurgeBlocked logs a purge root rejected by the compliance checker.
func (a *AuditLogger) PurgeBlocked(rootType, reason string) {
	a.Log(AuditEvent{
		EventType: AuditPurgeBlocked,
		Target:    rootType,
		Success:   false,
		Error:     reason,
		Message:   fmt.Sprintf("purge blocked: root=%s: %s", rootType, escapeBraces(reason)),
	})
}

// ObserverState logs an observer lifecycle transition.
func (a *AuditLogger) ObserverState(observerID, state string) {
	a.Log(AuditEvent{
		EventType:  AuditObserverState,
		ObserverID: observerID,
		Target:     state,
		Success:    true,
		Message:    fmt.Sprintf("observer %s -> %s", observerID, state),
	})
}

// ObserverNotify logs a delivered notification batch.
func (a *AuditLogger) ObserverNotify(observerID string, added, removed int) {
	a.Log(AuditEvent{
		EventType:  AuditObserverNotify,
		ObserverID: observerID,
		Success:    true,
		Fields:     map[string]interface{}{"added": added, "removed": removed},
		Message:    fmt.Sprintf("observer %s notified: +%d -%d", observerID, added, removed),
	})
}

// ObserverError logs an error raised during observer dispatch.
func (a *AuditLogger) ObserverError(observerID string, err error) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType:  AuditObserverError,
		ObserverID: observerID,
		Success:    false,
		Error:      errMsg,
		Message:    fmt.Sprintf("observer %s error: %s", observerID, errMsg),
	})
}

// QueryEval logs a top-level specification evaluation.
func (a *AuditLogger) QueryEval(specLabel string, resultCount int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditQueryEval,
		Target:     specLabel,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"results": resultCount},
		Message:    fmt.Sprintf("query eval: %s -> %d results (%dms)", specLabel, resultCount, durationMs),
	})
}

// InvertDerive logs inverse-specification derivation for a given fact type.
func (a *AuditLogger) InvertDerive(typeName string, inverseCount int) {
	a.Log(AuditEvent{
		EventType: AuditInvertDerive,
		Target:    typeName,
		Success:   true,
		Fields:    map[string]interface{}{"inverses": inverseCount},
		Message:   fmt.Sprintf("invert derive: %s -> %d inverses", typeName, inverseCount),
	})
}

// IngestTail logs a fact-log tail event picking up newly appended envelopes.
func (a *AuditLogger) IngestTail(path string, count int) {
	a.Log(AuditEvent{
		EventType: AuditIngestTail,
		Target:    path,
		Success:   true,
		Fields:    map[string]interface{}{"count": count},
		Message:   fmt.Sprintf("ingest tail: %s -> %d facts", path, count),
	})
}

// BuildError logs a CLI/command build or parse error.
func (a *AuditLogger) BuildError(target string, err error) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType: AuditBuildError,
		Target:    target,
		Success:   false,
		Error:     errMsg,
		Message:   fmt.Sprintf("build error: %s: %s", target, errMsg),
	})
}
