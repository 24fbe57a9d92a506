package services_test

import (
	"context"
	"testing"

	"oracletom/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithObjectID(ctx, 55772173)
	ctx = services.WithStage(ctx, "assemble")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %q %v", id, ok)
	}
	if id, ok := services.ObjectIDFromContext(ctx); !ok || id != 55772173 {
		t.Fatalf("unexpected object id: %d %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "assemble" {
		t.Fatalf("unexpected stage: %q %v", stage, ok)
	}
}

func TestEmptyValuesAreIgnored(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "")
	ctx = services.WithStage(ctx, "")
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id")
	}
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage")
	}
	if _, ok := services.ObjectIDFromContext(ctx); ok {
		t.Fatal("expected no object id")
	}
}
