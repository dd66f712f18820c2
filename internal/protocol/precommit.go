package protocol

import (
	"fmt"
	"time"

	"memoryengine/internal/logging"
	"memoryengine/internal/store"
)

// PreflightIssue is one blocking or advisory finding from CheckStagedFiles.
type PreflightIssue struct {
	Type     string `json:"type"`
	MemoryID int64  `json:"memory_id"`
	FilePath string `json:"file_path,omitempty"`
	Message  string `json:"message"`
}

// PreflightReport is the result of a pre-commit advisory check (EXPANSION
// C item 1, grounded on the teacher's pre-commit hook idiom and the
// original source's PreCommitChecker): pending decisions older than the
// threshold and failed approaches on staged files block; recent pending
// decisions and plain warning memories are advisory only.
type PreflightReport struct {
	CanProceed bool             `json:"can_proceed"`
	Blocks     []PreflightIssue `json:"blocks"`
	Warnings   []PreflightIssue `json:"warnings"`
}

const contentPreviewLen = 80

// CheckStagedFiles inspects pending decisions (category=decision with no
// recorded outcome) and, for each staged file, memories touching that
// file with a failed (worked=false) or warning outcome. Pending decisions
// older than the gate's configured threshold, and any failed approach,
// are blocking; everything else surfaces as advisory.
func (g *Gate) CheckStagedFiles(files []string) (*PreflightReport, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "protocol.CheckStagedFiles")
	defer timer.Stop()

	memories, err := g.store.ListNonArchived(g.projectPath)
	if err != nil {
		return nil, fmt.Errorf("protocol: check staged files: %w", err)
	}

	report := &PreflightReport{}
	now := time.Now().UTC()

	for _, mem := range memories {
		if mem.Category != store.CategoryDecision || mem.Worked != store.WorkedUnknown {
			continue
		}
		age := now.Sub(mem.CreatedAt)
		preview := truncate(mem.Content, contentPreviewLen)
		if age > g.pendingThreshold {
			report.Blocks = append(report.Blocks, PreflightIssue{
				Type:     "PENDING_DECISION_OLD",
				MemoryID: mem.ID,
				Message:  fmt.Sprintf("Decision #%d from %dh ago needs outcome: %s", mem.ID, int(age.Hours()), preview),
			})
		} else {
			report.Warnings = append(report.Warnings, PreflightIssue{
				Type:     "PENDING_DECISION_RECENT",
				MemoryID: mem.ID,
				Message:  fmt.Sprintf("Decision #%d needs outcome: %s", mem.ID, preview),
			})
		}
	}

	staged := make(map[string]bool, len(files))
	for _, f := range files {
		staged[f] = true
	}
	for _, mem := range memories {
		if mem.FilePath == "" && mem.FilePathRelative == "" {
			continue
		}
		if !staged[mem.FilePath] && !staged[mem.FilePathRelative] {
			continue
		}
		file := mem.FilePathRelative
		if file == "" {
			file = mem.FilePath
		}
		preview := truncate(mem.Content, contentPreviewLen)
		switch {
		case mem.Worked == store.WorkedFalse:
			report.Blocks = append(report.Blocks, PreflightIssue{
				Type:     "FAILED_APPROACH",
				MemoryID: mem.ID,
				FilePath: file,
				Message:  fmt.Sprintf("File %s has failed approach: %s", file, preview),
			})
		case mem.Category == store.CategoryWarning:
			report.Warnings = append(report.Warnings, PreflightIssue{
				Type:     "FILE_WARNING",
				MemoryID: mem.ID,
				FilePath: file,
				Message:  fmt.Sprintf("Warning for %s: %s", file, preview),
			})
		}
	}

	report.CanProceed = len(report.Blocks) == 0
	logging.AuditWithSession(SessionID(g.projectPath), g.projectPath).PreCommitCheck(len(files), len(report.Warnings))
	return report, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
