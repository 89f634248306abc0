package messages

import (
	"reflect"
	"testing"

	"github.com/xraph/streamobject/provider"
)

func TestBuildOrdersSystemHistoryUser(t *testing.T) {
	history := []provider.Message{{Role: provider.RoleAssistant, Text: "earlier"}}
	got := Build("be terse", history, "what now")

	if len(got) != 3 {
		t.Fatalf("Build() returned %d messages, want 3", len(got))
	}
	if got[0].Role != provider.RoleSystem || got[0].Text != "be terse" {
		t.Fatalf("got[0] = %#v, want system/be terse", got[0])
	}
	if !reflect.DeepEqual(got[1], history[0]) {
		t.Fatalf("got[1] = %#v, want history[0]", got[1])
	}
	if got[2].Role != provider.RoleUser || got[2].Text != "what now" {
		t.Fatalf("got[2] = %#v, want user/what now", got[2])
	}
}

func TestBuildOmitsEmptySystemAndUser(t *testing.T) {
	got := Build("", nil, "")
	if len(got) != 0 {
		t.Fatalf("Build() = %#v, want empty", got)
	}
}

func TestBuildMergesAdjacentSameRoleMessages(t *testing.T) {
	history := []provider.Message{{Role: provider.RoleUser, Text: "earlier question"}}
	got := Build("", history, "follow-up question")

	if len(got) != 1 {
		t.Fatalf("Build() returned %d messages, want 1 merged message", len(got))
	}
	if got[0].Role != provider.RoleUser || got[0].Text != "earlier question\n\nfollow-up question" {
		t.Fatalf("got[0] = %#v, want merged user text", got[0])
	}
}

func TestBuildDoesNotMergeMessagesCarryingParts(t *testing.T) {
	history := []provider.Message{{Role: provider.RoleUser, Parts: []provider.ContentPart{provider.TextPart{Text: "earlier"}}}}
	got := Build("", history, "follow-up")

	if len(got) != 2 {
		t.Fatalf("Build() returned %d messages, want 2 (no merge across Parts)", len(got))
	}
}
