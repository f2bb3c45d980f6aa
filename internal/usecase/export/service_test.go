package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/warehouse-ai/ragcore/internal/domain"
)

func TestBuildPrompt_SkipsEmptyAndJoins(t *testing.T) {
	obj := map[string]any{
		"EMPLOYEENAME": "Alice",
		"BASICSALARY":  float64(1000),
		"NOTES":        "   ",
		"MANAGER":      nil,
		"TAGS":         []any{"a", "b"},
	}

	got := BuildPrompt(obj, 6000)
	want := `BASICSALARY: 1000 | EMPLOYEENAME: Alice | TAGS: ["a","b"]`
	if got != want {
		t.Errorf("BuildPrompt = %q, want %q", got, want)
	}
}

func TestBuildPrompt_Truncates(t *testing.T) {
	obj := map[string]any{"field": strings.Repeat("x", 100)}

	got := BuildPrompt(obj, 20)
	if !strings.HasSuffix(got, " &(truncated)") {
		t.Errorf("expected truncation marker, got %q", got)
	}
	if len(got) != 20+len(" &(truncated)") {
		t.Errorf("unexpected truncated length %d", len(got))
	}
}

func TestBuildPrompt_TruncatesOnRuneBoundary(t *testing.T) {
	obj := map[string]any{"field": strings.Repeat("я", 100)}

	got := BuildPrompt(obj, 20)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated prompt is not valid UTF-8: %q", got)
	}
	body := strings.TrimSuffix(got, " &(truncated)")
	if n := utf8.RuneCountInString(body); n != 20 {
		t.Errorf("expected 20 runes before the marker, got %d", n)
	}
}

func TestStableID_DeterministicPerEmployee(t *testing.T) {
	a := StableID(map[string]any{"EMPLOYEEID": "E42", "EMPLOYEENAME": "Alice"})
	b := StableID(map[string]any{"EMPLOYEEID": "E42", "EMPLOYEENAME": "Alice Updated"})
	if a != b {
		t.Errorf("same employee must map to the same id: %q vs %q", a, b)
	}

	c := StableID(map[string]any{"EMPLOYEEID": "E43"})
	if a == c {
		t.Error("different employees must map to different ids")
	}
}

func TestStableID_FallsBackToCanonicalJSON(t *testing.T) {
	a := StableID(map[string]any{"x": "1", "y": "2"})
	b := StableID(map[string]any{"y": "2", "x": "1"})
	if a != b {
		t.Errorf("key order must not change the id: %q vs %q", a, b)
	}
}

func TestWriteJSONL_StreamsOneLinePerRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"EMPLOYEEID":"e1","EMPLOYEENAME":"Alice"},
			"not an object",
			{"EMPLOYEEID":"e2","EMPLOYEENAME":"Bob"}
		]`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	svc := New(&Config{SourceURL: srv.URL})
	if err := svc.WriteJSONL(context.Background(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		lines = append(lines, line)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line["id"] == "" || line["prompt"] == "" {
			t.Errorf("line missing id or prompt: %v", line)
		}
		if line["source"] != sourceTag {
			t.Errorf("unexpected source tag %v", line["source"])
		}
	}
}

func TestWriteJSONL_SourceErrorIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := New(&Config{SourceURL: srv.URL})
	err := svc.WriteJSONL(context.Background(), &bytes.Buffer{})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
