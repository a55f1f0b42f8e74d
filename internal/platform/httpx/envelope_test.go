package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hometech/api/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "abc123"})

	WriteError(ctx, rec, NewError("order_not_found", "order not\nfound", http.StatusNotFound))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false || body["error"] != "order_not_found" || body["message"] != "order not found" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["data"]; !ok {
		t.Fatalf("expected data key to be present")
	}
	if body["traceId"] != "abc123" {
		t.Fatalf("expected trace id, got %v", body["traceId"])
	}
}

func TestWriteErrorNeverUsesSuccessStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), rec, Error{Code: "x", Message: "y", Status: http.StatusOK})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a failure envelope, got %d", rec.Code)
	}
}

func TestWriteOK(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteOK(rec, "done", map[string]int{"count": 2})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	var body Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Message != "done" || body.Error != "" {
		t.Fatalf("unexpected envelope %+v", body)
	}
}
