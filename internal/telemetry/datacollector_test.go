package telemetry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auditrelay/internal/rules"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("super-secret-key"))

func sampleBatch(n int) Batch {
	results := make([]rules.Result, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, rules.Result{
			RuleID:  "description-exists",
			Module:  rules.ModuleRepository,
			Target:  "acme/repo",
			Status:  rules.StatusFail,
			Message: "Repository description is empty",
		})
	}
	b := NewBatch("", "run-1", results)
	b.GeneratedAt = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return b
}

func TestBuildSignature(t *testing.T) {
	date := "Mon, 02 Jan 2006 15:04:05 GMT"
	sig1, err := buildSignature(testKey, date, 42)
	if err != nil {
		t.Fatalf("buildSignature: %v", err)
	}
	sig2, _ := buildSignature(testKey, date, 42)
	sig3, _ := buildSignature(testKey, date, 43)
	if sig1 != sig2 {
		t.Error("signature should be deterministic")
	}
	if sig1 == sig3 {
		t.Error("signature should depend on content length")
	}
	if _, err := buildSignature("%%%", date, 1); err == nil {
		t.Error("expected error for invalid key")
	}
}

func TestDataCollectorSender_Send(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	var gotRecords []Record
	var gotHeaders http.Header
	var gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotQuery = r.URL.RawQuery
		if r.URL.Path != "/api/logs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotRecords); err != nil {
			t.Errorf("body is not a JSON array: %v", err)
		}
		want, _ := buildSignature(testKey, fixed.Format(http.TimeFormat), len(body))
		if got := r.Header.Get("Authorization"); got != "SharedKey ws-1:"+want {
			t.Errorf("unexpected Authorization %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewDataCollectorSender("ws-1", testKey, nil)
	if err != nil {
		t.Fatalf("NewDataCollectorSender: %v", err)
	}
	s.Endpoint = srv.URL
	s.HTTPClient = srv.Client()
	s.now = func() time.Time { return fixed }

	if err := s.Send(context.Background(), sampleBatch(5)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(gotRecords) != 5 {
		t.Fatalf("expected 5 records, got %d", len(gotRecords))
	}
	if gotRecords[0].RunId != "run-1" || gotRecords[0].Outcome != "FAIL" || gotRecords[0].TimeGenerated != "2026-03-04T05:06:07Z" {
		t.Errorf("unexpected record %+v", gotRecords[0])
	}
	if gotHeaders.Get("Log-Type") != DefaultLogType {
		t.Errorf("unexpected Log-Type %q", gotHeaders.Get("Log-Type"))
	}
	if gotHeaders.Get("time-generated-field") != "TimeGenerated" {
		t.Errorf("missing time-generated-field header")
	}
	if gotHeaders.Get("x-ms-date") != fixed.Format(http.TimeFormat) {
		t.Errorf("unexpected x-ms-date %q", gotHeaders.Get("x-ms-date"))
	}
	if gotQuery != "api-version=2016-04-01" {
		t.Errorf("unexpected query %q", gotQuery)
	}
}

func TestDataCollectorSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "InvalidAuthorization", http.StatusForbidden)
	}))
	defer srv.Close()

	s, _ := NewDataCollectorSender("ws-1", testKey, nil)
	s.Endpoint = srv.URL

	err := s.Send(context.Background(), sampleBatch(1))
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
	if !strings.Contains(err.Error(), "InvalidAuthorization") {
		t.Errorf("expected body excerpt in error, got %v", err)
	}
}

func TestDataCollectorSender_EmptyBatchIsNoop(t *testing.T) {
	s, _ := NewDataCollectorSender("ws-1", testKey, nil)
	s.Endpoint = "http://127.0.0.1:1"
	if err := s.Send(context.Background(), Batch{}); err != nil {
		t.Fatalf("expected no request for empty batch, got %v", err)
	}
}

func TestNewDataCollectorSender_Validation(t *testing.T) {
	if _, err := NewDataCollectorSender("", testKey, nil); err == nil {
		t.Error("expected error for missing workspace")
	}
	if _, err := NewDataCollectorSender("ws", "not base64!", nil); err == nil {
		t.Error("expected error for invalid key")
	}
	if _, err := NewDataCollectorSender("ws", "", nil); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestChunkRecords(t *testing.T) {
	records := sampleBatch(10).Records()
	one, _ := json.Marshal(records[0])

	chunks, err := chunkRecords(records, 3*len(one)+4)
	if err != nil {
		t.Fatalf("chunkRecords: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		var rs []Record
		if err := json.Unmarshal(c, &rs); err != nil {
			t.Fatalf("chunk is not valid JSON: %v", err)
		}
		total += len(rs)
	}
	if total != 10 {
		t.Fatalf("expected 10 records across chunks, got %d", total)
	}
}
