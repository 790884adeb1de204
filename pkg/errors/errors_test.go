package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCode(t *testing.T) {
	meta := MetadataFor(CodeRateLimit)
	if meta.HTTPStatus != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", meta.HTTPStatus)
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "upstream call")
	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause in chain")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("expected dependency code, got %s", err.Code())
	}
}

func TestAsFindsTypedError(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeNotFound, "missing"))
	typed := As(err)
	if typed == nil || typed.Code() != CodeNotFound {
		t.Fatalf("expected typed not-found, got %v", typed)
	}
	if !IsCode(err, CodeNotFound) {
		t.Fatal("IsCode should match through wrapping")
	}
}
