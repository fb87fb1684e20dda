package shared

import (
	"net/http"
	"testing"
)

func TestNewAPIError(t *testing.T) {
	err := NewAPIError("test_code", "test message")
	if err.Code != "test_code" {
		t.Errorf("expected code 'test_code', got '%s'", err.Code)
	}
	if err.Message != "test message" {
		t.Errorf("expected message 'test message', got '%s'", err.Message)
	}
	if err.Details != nil {
		t.Errorf("expected nil details, got %v", err.Details)
	}
}

func TestAPIError_WithDetails(t *testing.T) {
	err := NewAPIError("code", "message").WithDetails(map[string]string{"segment_id": "seg_1"})

	d, ok := err.Details.(map[string]string)
	if !ok {
		t.Fatal("expected details to be map[string]string")
	}
	if d["segment_id"] != "seg_1" {
		t.Errorf("expected segment_id 'seg_1', got '%s'", d["segment_id"])
	}
}

func TestAPIError_ToHTTP(t *testing.T) {
	httpErr := NewAPIError("code", "message").ToHTTP(http.StatusBadRequest)

	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, httpErr.Code)
	}
	msg, ok := httpErr.Message.(*APIError)
	if !ok {
		t.Fatal("expected message to be *APIError")
	}
	if msg.Code != "code" {
		t.Errorf("expected code 'code', got '%s'", msg.Code)
	}
}

func TestHelpers(t *testing.T) {
	if BadRequest("c", "m").Code != http.StatusBadRequest {
		t.Error("BadRequest status mismatch")
	}
	if NotFound("c", "m").Code != http.StatusNotFound {
		t.Error("NotFound status mismatch")
	}
	if Conflict("c", "m").Code != http.StatusConflict {
		t.Error("Conflict status mismatch")
	}
	if UnprocessableEntity("c", "m").Code != http.StatusUnprocessableEntity {
		t.Error("UnprocessableEntity status mismatch")
	}
	if InternalError("c", "m").Code != http.StatusInternalServerError {
		t.Error("InternalError status mismatch")
	}
}
