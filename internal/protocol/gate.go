package protocol

import (
	"fmt"
	"time"

	"memoryengine/internal/logging"
	"memoryengine/internal/store"
)

// Violation is the closed set of structured gate failures.
type Violation string

const (
	ViolationInitRequired         Violation = "INIT_REQUIRED"
	ViolationContextCheckRequired Violation = "CONTEXT_CHECK_REQUIRED"
)

// Remedy names the tool a caller should invoke to clear a Violation.
type Remedy struct {
	Tool string `json:"tool"`
}

// GateResult is the structured outcome of a gate check: either it passes
// silently (Blocked == false) or it names what remedy clears it.
type GateResult struct {
	Blocked   bool      `json:"blocked"`
	Violation Violation `json:"violation,omitempty"`
	Remedy    *Remedy   `json:"remedy,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// ToolClass is the three-way tool categorization of spec §4.J.
type ToolClass int

const (
	// ToolExempt tools are always allowed, session state notwithstanding.
	ToolExempt ToolClass = iota
	// ToolInitRequired tools need briefed == true.
	ToolInitRequired
	// ToolContextCheckRequired tools need briefed == true and a context
	// check within TTL: mutators that change durable state.
	ToolContextCheckRequired
)

var exemptTools = map[string]bool{
	"get_briefing": true,
	"health":       true,
}

// durable-state mutators: remember, record_outcome, add_rule,
// prune_memories, compact, link_memories, and their siblings.
var contextCheckTools = map[string]bool{
	"remember":         true,
	"record_outcome":   true,
	"add_rule":         true,
	"update_rule":      true,
	"delete_rule":      true,
	"prune_memories":   true,
	"compact":          true,
	"link_memories":    true,
	"unlink_memories":  true,
	"create_trigger":   true,
	"merge_memories":   true,
	"update_memory":    true,
}

// ClassifyTool reports which of the three gate classes tool belongs to.
// Anything not named explicitly as exempt or context-check-required falls
// to init-required, per spec §4.J ("all mutators and most reads").
func ClassifyTool(tool string) ToolClass {
	if exemptTools[tool] {
		return ToolExempt
	}
	if contextCheckTools[tool] {
		return ToolContextCheckRequired
	}
	return ToolInitRequired
}

// Gate is the session-state machine for one project's store.
type Gate struct {
	store            *store.Store
	projectPath      string
	tokenSecret      []byte
	tokenTTL         time.Duration
	pendingThreshold time.Duration
}

// defaultPendingThreshold mirrors config.DefaultConfig's
// PendingDecisionThresholdHours (24h); New's caller should override it
// with the project's configured value via WithPendingThreshold.
const defaultPendingThreshold = 24 * time.Hour

// New builds a Gate over an already-open Store.
func New(st *store.Store, projectPath string, tokenSecret []byte) *Gate {
	return &Gate{
		store:            st,
		projectPath:      projectPath,
		tokenSecret:      tokenSecret,
		tokenTTL:         DefaultTokenTTL,
		pendingThreshold: defaultPendingThreshold,
	}
}

// WithPendingThreshold overrides the pending-decision age threshold used
// by CheckStagedFiles (spec config key pending_decision_threshold_hours).
func (g *Gate) WithPendingThreshold(d time.Duration) *Gate {
	g.pendingThreshold = d
	return g
}

// Check runs the appropriate gate(s) for tool and returns the combined
// result. A nil GateResult.Blocked == false means the caller may proceed.
func (g *Gate) Check(tool, action string) (*GateResult, error) {
	class := ClassifyTool(tool)
	if class == ToolExempt {
		return &GateResult{}, nil
	}

	sessionID := SessionID(g.projectPath)
	audit := logging.AuditWithSession(sessionID, g.projectPath)

	initResult, err := g.checkInit(sessionID)
	if err != nil {
		return nil, err
	}
	if initResult.Blocked {
		return initResult, nil
	}
	if class == ToolInitRequired {
		return &GateResult{}, nil
	}

	counselResult, err := g.checkCounsel(sessionID, action)
	if err != nil {
		return nil, err
	}
	audit.ContextCheckVerified(action, !counselResult.Blocked, string(counselResult.Violation))
	return counselResult, nil
}

// checkInit loads or creates the session and requires briefed == true
// without mutating state itself (spec §4.J Check_init).
func (g *Gate) checkInit(sessionID string) (*GateResult, error) {
	session, err := loadOrCreateSession(g.store, sessionID, g.projectPath)
	if err != nil {
		return nil, fmt.Errorf("protocol: check_init: %w", err)
	}
	if !session.Briefed {
		return &GateResult{
			Blocked:   true,
			Violation: ViolationInitRequired,
			Remedy:    &Remedy{Tool: "get_briefing"},
		}, nil
	}
	return &GateResult{}, nil
}

// checkCounsel requires a context check recorded within the TTL (spec
// §4.J Check_counsel).
func (g *Gate) checkCounsel(sessionID, action string) (*GateResult, error) {
	session, err := g.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("protocol: check_counsel: %w", err)
	}
	if session != nil && hasValidCheck(session.ContextChecks, g.tokenTTL) {
		return &GateResult{}, nil
	}
	return &GateResult{
		Blocked:   true,
		Violation: ViolationContextCheckRequired,
		Remedy:    &Remedy{Tool: "context_check"},
		Message:   fmt.Sprintf("about to %s", action),
	}, nil
}

func hasValidCheck(checks []store.ContextCheck, ttl time.Duration) bool {
	cutoff := time.Now().UTC().Add(-ttl)
	for _, c := range checks {
		if c.Timestamp.After(cutoff) {
			return true
		}
	}
	return false
}

// MarkBriefed records that get_briefing ran for this project's current
// session.
func (g *Gate) MarkBriefed() error {
	sessionID := SessionID(g.projectPath)
	if _, err := loadOrCreateSession(g.store, sessionID, g.projectPath); err != nil {
		return err
	}
	return g.store.MarkBriefed(sessionID)
}

// ContextCheckResult is returned by the context_check tool: the recorded
// topic plus a preflight token a future transport can carry forward.
type ContextCheckResult struct {
	Topic     string `json:"topic"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// ContextCheck records {topic, timestamp: now} against the session (the
// store trims to the last 20 entries) and issues a preflight token for
// action, per spec §4.J's "Context-check tool".
func (g *Gate) ContextCheck(action, topic string) (*ContextCheckResult, error) {
	sessionID := SessionID(g.projectPath)
	if _, err := loadOrCreateSession(g.store, sessionID, g.projectPath); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := g.store.AddContextCheck(sessionID, topic, now); err != nil {
		return nil, fmt.Errorf("protocol: record context check: %w", err)
	}

	token, err := IssueToken(g.tokenSecret, action, sessionID, g.projectPath, g.tokenTTL)
	if err != nil {
		return nil, err
	}
	logging.AuditWithSession(sessionID, g.projectPath).ContextCheckIssued(action)

	return &ContextCheckResult{
		Topic:     topic,
		Token:     token,
		ExpiresAt: now.Add(g.tokenTTL).Unix(),
	}, nil
}

// RecordBypass logs an operator override that proceeded despite a blocked
// Check, e.g. an explicit --force path in an operator CLI.
func (g *Gate) RecordBypass(tool, violation string) error {
	sessionID := SessionID(g.projectPath)
	logging.AuditWithSession(sessionID, g.projectPath).Bypass(tool, violation)
	return g.store.RecordBypass(sessionID, g.projectPath, tool, violation)
}
