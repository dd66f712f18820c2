package memory

import (
	"fmt"

	"memoryengine/internal/logging"
	"memoryengine/internal/store"
)

// SealOutcome records a memory's outcome, per spec §4.G.4. If worked is
// false, it logs an advisory suggestion to the caller; it never
// auto-creates a warning memory.
func (m *Manager) SealOutcome(memoryID int64, outcome string, worked bool) (*store.Memory, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "SealOutcome")
	defer timer.Stop()

	w := store.WorkedTrue
	if !worked {
		w = store.WorkedFalse
	}
	if err := m.store.SealOutcome(memoryID, outcome, w); err != nil {
		return nil, fmt.Errorf("memory: seal outcome: %w", err)
	}
	m.recallCache.Clear()

	mem, err := m.store.GetMemory(memoryID)
	if err != nil {
		return nil, fmt.Errorf("memory: reload after seal: %w", err)
	}
	if mem == nil {
		return nil, fmt.Errorf("memory: memory %d not found after seal", memoryID)
	}
	if !worked {
		logging.MemoryWarn("memory %d did not work out (%s); caller may wish to create a warning memory", memoryID, outcome)
	}
	return mem, nil
}
