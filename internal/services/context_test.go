package services_test

import (
	"context"
	"testing"

	"mixtape/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBatchID(ctx, "b-1")
	ctx = services.WithJobIndex(ctx, 3)
	ctx = services.WithStage(ctx, "concat")

	if id, ok := services.BatchIDFromContext(ctx); !ok || id != "b-1" {
		t.Fatalf("unexpected batch id: %v %v", id, ok)
	}
	if idx, ok := services.JobIndexFromContext(ctx); !ok || idx != 3 {
		t.Fatalf("unexpected job index: %v %v", idx, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "concat" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.JobIndexFromContext(ctx); ok {
		t.Fatal("expected no job index")
	}
}
