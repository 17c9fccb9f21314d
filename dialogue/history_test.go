package dialogue

import (
	"reflect"
	"testing"
)

func TestFormatHistory(t *testing.T) {
	h := History{
		{Role: RoleUser, Text: "the printer is jammed"},
		{Role: RoleAssistant, Text: "Where is the issue located?"},
		{Role: RoleUser, Text: "floor 3"},
	}
	want := "User: the printer is jammed\nAI: Where is the issue located?\nUser: floor 3"
	if got := FormatHistory(h); got != want {
		t.Errorf("FormatHistory = %q, want %q", got, want)
	}
	if got := FormatHistory(nil); got != "" {
		t.Errorf("FormatHistory(nil) = %q", got)
	}
}

func TestParseHistoryRoundTrip(t *testing.T) {
	h := History{
		{Role: RoleUser, Text: "the printer is jammed"},
		{Role: RoleAssistant, Text: "Where is the issue located?"},
		{Role: RoleUser, Text: "floor 3"},
		{Role: RoleAssistant, Text: "What is the issue?"},
	}
	got := ParseHistory(FormatHistory(h))
	if !reflect.DeepEqual(got, h) {
		t.Errorf("round trip = %+v, want %+v", got, h)
	}
}

func TestParseHistorySkipsUnrecognizedLines(t *testing.T) {
	in := "garbage before any turn\nUser: hello\n\nAI: hi there\nuser: wrong case prefix"
	got := ParseHistory(in)
	want := History{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleAssistant, Text: "hi there\nuser: wrong case prefix"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseHistory = %+v, want %+v", got, want)
	}
}

func TestParseHistoryContinuationLines(t *testing.T) {
	in := "AI: first line\nsecond line\nUser: ok"
	got := ParseHistory(in)
	want := History{
		{Role: RoleAssistant, Text: "first line\nsecond line"},
		{Role: RoleUser, Text: "ok"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseHistory = %+v, want %+v", got, want)
	}
}

func TestParseHistoryEmpty(t *testing.T) {
	if got := ParseHistory(""); got != nil {
		t.Errorf("ParseHistory(\"\") = %+v, want nil", got)
	}
}
