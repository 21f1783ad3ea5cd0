package descriptions

import (
	"strings"
	"testing"
)

func TestToolDescriptions(t *testing.T) {
	names := GetAllToolNames()
	if len(names) != 8 {
		t.Fatalf("GetAllToolNames() returned %d names, want 8", len(names))
	}
	for i, name := range names {
		if !strings.HasPrefix(name, "legal_") {
			t.Errorf("tool %q should use the legal_ prefix", name)
		}
		if i > 0 && names[i-1] >= name {
			t.Errorf("GetAllToolNames() not sorted: %v", names)
		}
		if GetToolDescription(name) == "" {
			t.Errorf("tool %q has an empty description", name)
		}
	}
	if got := GetToolDescription("pdf_read_file"); got != "Tool description not available" {
		t.Errorf("GetToolDescription(unknown) = %q", got)
	}
}
