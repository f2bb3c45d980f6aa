package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeEmbedder struct {
	lastModel string
	failOn    string
}

func (f *fakeEmbedder) Embed(_ context.Context, model, text string) ([]float32, error) {
	f.lastModel = model
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embed failed")
	}
	return []float32{0.1, 0.2}, nil
}

type upsertCall struct {
	collection string
	id         string
	payload    map[string]any
}

type fakeUpserter struct {
	calls []upsertCall
	err   error
}

func (f *fakeUpserter) Upsert(_ context.Context, collection, id string, _ []float32, payload map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, upsertCall{collection: collection, id: id, payload: payload})
	return nil
}

func newService(embed *fakeEmbedder, store *fakeUpserter) *Service {
	return New(embed, store, "dw_text", "nomic-embed-text:latest", nil)
}

func TestUploadBatch_MalformedLineIsIsolated(t *testing.T) {
	body := `{"prompt":"first"}
{not json
{"prompt":"third"}`

	store := &fakeUpserter{}
	report, err := newService(&fakeEmbedder{}, store).UploadBatch(
		context.Background(), strings.NewReader(body), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Success != 2 || report.Failed != 1 {
		t.Fatalf("expected success=2 failed=1, got %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].Line != 2 {
		t.Fatalf("expected one error on line 2, got %+v", report.Errors)
	}
	if len(store.calls) != 2 {
		t.Errorf("expected 2 upserts, got %d", len(store.calls))
	}
}

func TestUploadBatch_MissingPromptFails(t *testing.T) {
	body := `{"other":"field"}
{"prompt":"   "}`

	report, err := newService(&fakeEmbedder{}, &fakeUpserter{}).UploadBatch(
		context.Background(), strings.NewReader(body), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Success != 0 || report.Failed != 2 {
		t.Fatalf("expected both lines to fail, got %+v", report)
	}
	for _, e := range report.Errors {
		if !strings.Contains(e.Error, "missing 'prompt'") {
			t.Errorf("unexpected error message %q", e.Error)
		}
	}
}

func TestUploadBatch_BlankLinesSkippedButNumbered(t *testing.T) {
	body := "{\"prompt\":\"one\"}\n\n{bad\n"

	report, err := newService(&fakeEmbedder{}, &fakeUpserter{}).UploadBatch(
		context.Background(), strings.NewReader(body), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Success != 1 || report.Failed != 1 {
		t.Fatalf("expected success=1 failed=1, got %+v", report)
	}
	if report.Errors[0].Line != 3 {
		t.Errorf("blank lines must still advance the line counter, got line %d", report.Errors[0].Line)
	}
}

func TestUploadBatch_IDAndModelOverrides(t *testing.T) {
	body := `{"prompt":"a","id":"explicit-id"}
{"prompt":"b","dw_id":12345}
{"prompt":"c","model":"custom:latest"}`

	embed := &fakeEmbedder{}
	store := &fakeUpserter{}
	report, err := newService(embed, store).UploadBatch(
		context.Background(), strings.NewReader(body), "uploads", "default-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Success != 3 {
		t.Fatalf("expected 3 successes, got %+v", report)
	}
	if report.Collection != "uploads" || report.EmbedModel != "default-model" {
		t.Errorf("report must echo collection and model, got %+v", report)
	}

	if store.calls[0].id != "explicit-id" {
		t.Errorf("expected explicit id, got %q", store.calls[0].id)
	}
	if store.calls[1].id != "12345" {
		t.Errorf("expected dw_id fallback, got %q", store.calls[1].id)
	}
	if embed.lastModel != "custom:latest" {
		t.Errorf("expected per-line model override, got %q", embed.lastModel)
	}
	if store.calls[0].collection != "uploads" {
		t.Errorf("expected uploads collection, got %q", store.calls[0].collection)
	}
}

func TestUploadBatch_GeneratedIDsAreUnique(t *testing.T) {
	body := `{"prompt":"same text"}
{"prompt":"same text"}`

	store := &fakeUpserter{}
	if _, err := newService(&fakeEmbedder{}, store).UploadBatch(
		context.Background(), strings.NewReader(body), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.calls) != 2 {
		t.Fatalf("expected 2 upserts, got %d", len(store.calls))
	}
	if store.calls[0].id == "" || store.calls[0].id == store.calls[1].id {
		t.Errorf("generated ids must be unique, got %q and %q", store.calls[0].id, store.calls[1].id)
	}
}

func TestUploadBatch_ErrorCapAppendsSentinelAndStops(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, "{bad json")
	}
	lines = append(lines, `{"prompt":"never reached"}`)
	body := strings.Join(lines, "\n")

	store := &fakeUpserter{}
	svc := newService(&fakeEmbedder{}, store).WithMaxErrors(3)
	report, err := svc.UploadBatch(context.Background(), strings.NewReader(body), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Failed != 3 {
		t.Errorf("expected processing to stop after 3 failures, got %d", report.Failed)
	}
	if len(report.Errors) != 4 {
		t.Fatalf("expected 3 errors plus sentinel, got %d", len(report.Errors))
	}
	last := report.Errors[len(report.Errors)-1]
	if !strings.Contains(last.Error, "too many errors") {
		t.Errorf("expected truncation sentinel, got %q", last.Error)
	}
	if report.Success != 0 || len(store.calls) != 0 {
		t.Error("lines after the cap must not be processed")
	}
}

func TestUploadBatch_UpstreamFailureIsPerLine(t *testing.T) {
	body := `{"prompt":"good line"}
{"prompt":"bad embed"}
{"prompt":"another good line"}`

	embed := &fakeEmbedder{failOn: "bad embed"}
	store := &fakeUpserter{}
	report, err := newService(embed, store).UploadBatch(
		context.Background(), strings.NewReader(body), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Success != 2 || report.Failed != 1 {
		t.Fatalf("expected success=2 failed=1, got %+v", report)
	}
	if report.Errors[0].Line != 2 {
		t.Errorf("expected failure on line 2, got %d", report.Errors[0].Line)
	}
}

func TestUploadBatch_OversizedLineIsIsolated(t *testing.T) {
	big := `{"prompt":"` + strings.Repeat("x", maxLineBytes) + `"}`
	body := big + "\n" + `{"prompt":"short and fine"}` + "\n"

	store := &fakeUpserter{}
	report, err := newService(&fakeEmbedder{}, store).UploadBatch(
		context.Background(), strings.NewReader(body), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Success != 1 || report.Failed != 1 {
		t.Fatalf("expected success=1 failed=1, got %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].Line != 1 {
		t.Fatalf("expected a single failure on line 1, got %+v", report.Errors)
	}
	if !strings.Contains(report.Errors[0].Error, "exceeds") {
		t.Errorf("expected a length error, got %q", report.Errors[0].Error)
	}
	if len(store.calls) != 1 {
		t.Errorf("expected the following line to be stored, got %d upserts", len(store.calls))
	}
}

func TestUploadBatch_PayloadPassesThrough(t *testing.T) {
	body := `{"prompt":"text","region":"emea","headcount":12}`

	store := &fakeUpserter{}
	if _, err := newService(&fakeEmbedder{}, store).UploadBatch(
		context.Background(), strings.NewReader(body), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := store.calls[0].payload
	if payload["region"] != "emea" || payload["headcount"] != float64(12) {
		t.Errorf("arbitrary fields must pass through as payload, got %v", payload)
	}
}
