package sync

import (
	"context"
	"reflect"
	"testing"

	"github.com/klauern/featsync/internal/events"
)

func newChangeFixture(t *testing.T) (*Manager, *fixture) {
	t.Helper()
	f := newFixture(t, &stubRunner{})
	return NewManager(f.staging, f.files, f.resolver, f.bus), f
}

func TestDetectChanges(t *testing.T) {
	m, f := newChangeFixture(t)

	f.writeLocal(t, "same.feature", "Feature: Same\n")
	f.writeStaged(t, "same.feature", "Feature: Same\n")

	f.writeLocal(t, "modified.feature", "Feature: Local\n")
	f.writeStaged(t, "modified.feature", "Feature: Remote\n")

	f.writeLocal(t, "deleted.feature", "Feature: Gone remotely\n")
	f.writeStaged(t, "added.feature", "Feature: New remotely\n")

	detected := 0
	f.bus.On(events.ChangesDetected, func(events.Event) { detected++ })

	cs, err := m.DetectChanges()
	if err != nil {
		t.Fatalf("DetectChanges failed: %v", err)
	}

	if !reflect.DeepEqual(cs.Additions, []string{"added.feature"}) {
		t.Errorf("Additions = %v, want [added.feature]", cs.Additions)
	}
	if !reflect.DeepEqual(cs.Modifications, []string{"modified.feature"}) {
		t.Errorf("Modifications = %v, want [modified.feature]", cs.Modifications)
	}
	if !reflect.DeepEqual(cs.Deletions, []string{"deleted.feature"}) {
		t.Errorf("Deletions = %v, want [deleted.feature]", cs.Deletions)
	}
	if cs.Total() != 3 {
		t.Errorf("Total = %d, want 3", cs.Total())
	}
	if detected != 1 {
		t.Errorf("changes.detected events = %d, want 1", detected)
	}
}

func TestDetectChangesTrimmedEquality(t *testing.T) {
	m, f := newChangeFixture(t)

	// Leading/trailing whitespace differences are not modifications.
	f.writeLocal(t, "padded.feature", "Feature: Padded\n")
	f.writeStaged(t, "padded.feature", "\nFeature: Padded\n\n\n")

	cs, err := m.DetectChanges()
	if err != nil {
		t.Fatalf("DetectChanges failed: %v", err)
	}
	if !cs.IsEmpty() {
		t.Errorf("change set = %+v, want empty", cs)
	}
}

func TestDetectChangesIdempotent(t *testing.T) {
	m, f := newChangeFixture(t)

	f.writeLocal(t, "modified.feature", "Feature: Local\n")
	f.writeStaged(t, "modified.feature", "Feature: Remote\n")
	f.writeStaged(t, "added.feature", "Feature: Added\n")

	first, err := m.DetectChanges()
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.DetectChanges()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated detection differs: %+v vs %+v", first, second)
	}
}

func TestClassifyChanges(t *testing.T) {
	m, f := newChangeFixture(t)

	// Whitespace-only modification auto-resolves; content change goes manual.
	f.writeLocal(t, "ws.feature", "Feature: WS\nScenario: S\n")
	f.writeStaged(t, "ws.feature", "Feature: WS\nScenario:  S\n")
	f.writeLocal(t, "real.feature", "Feature: Real\nScenario: Local\n")
	f.writeStaged(t, "real.feature", "Feature: Real\nScenario: Remote\n")
	f.writeStaged(t, "added.feature", "Feature: Added\n")
	f.writeLocal(t, "deleted.feature", "Feature: Deleted\n")

	cs, err := m.DetectChanges()
	if err != nil {
		t.Fatal(err)
	}
	classified, err := m.ClassifyChanges(context.Background(), cs)
	if err != nil {
		t.Fatalf("ClassifyChanges failed: %v", err)
	}

	if len(classified.Simple) != 2 {
		t.Errorf("Simple = %v, want 2 entries", classified.Simple)
	}
	if len(classified.AutoResolved) != 1 || classified.AutoResolved[0].Path != "ws.feature" {
		t.Errorf("AutoResolved = %+v, want ws.feature", classified.AutoResolved)
	}
	if len(classified.Complex) != 1 || classified.Complex[0].Path != "real.feature" {
		t.Errorf("Complex = %+v, want real.feature", classified.Complex)
	}
	if len(classified.Failed) != 0 {
		t.Errorf("Failed = %+v, want none", classified.Failed)
	}
}

func TestClassifyChangesEmptyModifications(t *testing.T) {
	m, f := newChangeFixture(t)

	f.writeStaged(t, "added.feature", "Feature: Added\n")

	cs, err := m.DetectChanges()
	if err != nil {
		t.Fatal(err)
	}
	classified, err := m.ClassifyChanges(context.Background(), cs)
	if err != nil {
		t.Fatalf("ClassifyChanges failed: %v", err)
	}
	if len(classified.Simple) != 1 {
		t.Errorf("Simple = %v, want [added.feature]", classified.Simple)
	}
	if len(classified.AutoResolved)+len(classified.Complex)+len(classified.Failed) != 0 {
		t.Error("expected no resolver activity without modifications")
	}
}
