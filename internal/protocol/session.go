// Package protocol implements the session-state gate of spec §4.J: a
// per-(project, hour) session that tools must initialize and
// context-check before they are allowed to mutate durable state.
package protocol

import (
	"crypto/md5"
	"fmt"
	"time"

	"memoryengine/internal/store"
)

// SessionID derives the session id for projectPath at the current wall
// clock hour: md5(project_path)[:8]-YYYYMMDDHH. Same project within the
// same hour shares state; a new hour starts a fresh session.
func SessionID(projectPath string) string {
	sum := md5.Sum([]byte(projectPath))
	hourBucket := time.Now().UTC().Format("2006010215")
	return fmt.Sprintf("%x-%s", sum[:4], hourBucket)
}

// loadOrCreateSession returns the SessionState for sessionID, creating a
// fresh (briefed=false) row if none exists yet.
func loadOrCreateSession(st *store.Store, sessionID, projectPath string) (*store.SessionState, error) {
	s, err := st.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("protocol: load session: %w", err)
	}
	if s != nil {
		return s, nil
	}
	return st.CreateSession(sessionID, projectPath)
}
