package audit

import (
	"context"
	"testing"

	"github.com/vontrex/mediaingest/internal/models"
)

func TestDisabledTrailRecordIsNoOp(t *testing.T) {
	trail := Disabled()
	// Must not panic or block even though there's no backing connection.
	trail.Record(context.Background(), "generic", models.ProcessedPost{})
	if err := trail.Close(); err != nil {
		t.Fatalf("expected Close on disabled trail to be a no-op, got %v", err)
	}
}

func TestConnectWithEmptyDSNReturnsDisabled(t *testing.T) {
	trail, err := Connect(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trail.db != nil {
		t.Fatalf("expected disabled trail for empty dsn")
	}
}
