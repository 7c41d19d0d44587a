package record

import (
	"strings"
	"testing"
)

func TestParse_ReadWithOffsetLimit(t *testing.T) {
	env := Envelope{
		ToolName:  "Read",
		SessionID: "sess_1",
		ToolInput: map[string]any{
			"file_path": "/repo/svc/auth.py",
			"offset":    float64(10),
			"limit":     float64(20),
		},
	}

	rec, _ := Parse(env, 100)

	if len(rec.Files) != 1 || rec.Files[0] != "/repo/svc/auth.py:10-30" {
		t.Fatalf("unexpected files: %v", rec.Files)
	}
	if rec.ToolName != "Read" {
		t.Errorf("tool name = %q", rec.ToolName)
	}
}

func TestParse_OffsetOnlyUsesPlusSuffix(t *testing.T) {
	env := Envelope{
		ToolName: "Read",
		ToolInput: map[string]any{
			"file_path": "/repo/a.go",
			"offset":    float64(5),
		},
	}

	rec, _ := Parse(env, 0)

	if len(rec.Files) != 1 || rec.Files[0] != "/repo/a.go:5+" {
		t.Fatalf("unexpected files: %v", rec.Files)
	}
}

func TestParse_WrappedSearchInvocation(t *testing.T) {
	env := Envelope{
		ToolName: "Bash",
		ToolInput: map[string]any{
			"command": "aoa grep -a user,session",
		},
		ToolResponse: "3 hits │ 4ms",
	}

	rec, _ := Parse(env, 0)

	if len(rec.Files) != 1 {
		t.Fatalf("expected exactly one cmd token, got %v", rec.Files)
	}
	want := "cmd:aoa:multi-and:aoa grep -a user,session:3:4"
	if rec.Files[0] != want {
		t.Errorf("got %q want %q", rec.Files[0], want)
	}
}

func TestParse_MalformedEnvelopeNeverPanics(t *testing.T) {
	env := Envelope{}
	rec, tags := Parse(env, 0)
	if rec.Files != nil && len(rec.Files) != 0 {
		t.Errorf("expected no files, got %v", rec.Files)
	}
	if len(tags) != 0 {
		t.Errorf("expected no search tags, got %v", tags)
	}
}

func TestParse_OutputSizeFromStringResponse(t *testing.T) {
	env := Envelope{
		ToolName:     "Read",
		ToolResponse: "hello world",
	}
	rec, _ := Parse(env, 0)
	if rec.OutputSize != len("hello world") {
		t.Errorf("output size = %d", rec.OutputSize)
	}
}

func TestParse_CapsAtMaxFileTokens(t *testing.T) {
	var paths []any
	for i := 0; i < 30; i++ {
		paths = append(paths, "/repo/file"+strings.Repeat("x", i)+".go")
	}
	env := Envelope{
		ToolInput: map[string]any{"paths": paths},
	}
	rec, _ := Parse(env, 0)
	if len(rec.Files) > 20 {
		t.Errorf("expected cap at 20, got %d", len(rec.Files))
	}
}
