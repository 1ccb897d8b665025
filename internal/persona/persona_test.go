package persona

import (
	"strings"
	"testing"
)

func TestPersonaIsFixed(t *testing.T) {
	t.Parallel()

	if ModelName != "gpt-3" {
		t.Errorf("ModelName = %q, want gpt-3", ModelName)
	}

	for _, want := range []string{"langCoach", "French", "corrections"} {
		if !strings.Contains(SystemPrompt, want) {
			t.Errorf("SystemPrompt missing %q", want)
		}
	}
}
