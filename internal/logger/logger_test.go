package logger

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanizio/mailroom/internal/config"
)

func TestNew_WritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(config.LogSettings{Dir: dir, Level: "debug"}, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hello")
	_ = l.Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want one log file, got %d", len(entries))
	}
}

func TestNew_RejectsBadLevel(t *testing.T) {
	if _, err := New(config.LogSettings{Dir: t.TempDir(), Level: "loud"}, false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestStartSpan_AttachesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx, span := StartSpan(context.Background(), base, "adding a new subscriber",
		zap.String("subscriber_name", "le guin"))
	FromContext(ctx).Info("saving")
	span.End()

	got := logs.FilterMessage("saving").All()
	if len(got) != 1 {
		t.Fatalf("want 1 entry, got %d", len(got))
	}
	fields := got[0].ContextMap()
	if fields["span"] != "adding a new subscriber" {
		t.Fatalf("span field = %v", fields["span"])
	}
	if fields["subscriber_name"] != "le guin" {
		t.Fatalf("subscriber_name field = %v", fields["subscriber_name"])
	}
	if fields["request_id"] != span.ID().String() {
		t.Fatalf("request_id = %v, want %s", fields["request_id"], span.ID())
	}
	if logs.FilterMessage("span closed").Len() != 1 {
		t.Fatal("span closed not logged")
	}
}

func TestStartSpan_ReusesRequestID(t *testing.T) {
	id := uuid.New()
	ctx := WithRequestID(context.Background(), id)

	_, span := StartSpan(ctx, zap.NewNop(), "op")
	if span.ID() != id {
		t.Fatalf("span id = %s, want %s", span.ID(), id)
	}
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext returned nil")
	}
}
