package embedding

import "testing"

func TestSelectTaskType(t *testing.T) {
	if got := SelectTaskType(ContentTypeWarning, false); got != "FACT_VERIFICATION" {
		t.Fatalf("SelectTaskType(warning)=%q, want FACT_VERIFICATION", got)
	}
	if got := SelectTaskType(ContentTypePattern, false); got != "CLUSTERING" {
		t.Fatalf("SelectTaskType(pattern)=%q, want CLUSTERING", got)
	}
	if got := SelectTaskType(ContentTypeDecision, false); got != "RETRIEVAL_DOCUMENT" {
		t.Fatalf("SelectTaskType(decision)=%q, want RETRIEVAL_DOCUMENT", got)
	}
	if got := SelectTaskType(ContentTypeLearning, true); got != "RETRIEVAL_QUERY" {
		t.Fatalf("SelectTaskType(query)=%q, want RETRIEVAL_QUERY", got)
	}
}

func TestDetectContentType(t *testing.T) {
	if got := DetectContentType("pattern", false); got != ContentTypePattern {
		t.Fatalf("DetectContentType(pattern)=%q, want %q", got, ContentTypePattern)
	}
	if got := DetectContentType("rule", false); got != ContentTypeRule {
		t.Fatalf("DetectContentType(rule)=%q, want %q", got, ContentTypeRule)
	}
	if got := DetectContentType("whatever", true); got != ContentTypeQuery {
		t.Fatalf("DetectContentType(isQuery)=%q, want %q", got, ContentTypeQuery)
	}
	if got := DetectContentType("unknown-category", false); got != ContentTypeLearning {
		t.Fatalf("DetectContentType(unknown)=%q, want %q", got, ContentTypeLearning)
	}
}

func TestGetOptimalTaskType(t *testing.T) {
	if got := GetOptimalTaskType("warning", false); got != "FACT_VERIFICATION" {
		t.Fatalf("GetOptimalTaskType(warning)=%q, want FACT_VERIFICATION", got)
	}
}
