package sync

import (
	"context"
	"strings"

	"github.com/klauern/featsync/internal/events"
	"github.com/klauern/featsync/internal/logging"
	"github.com/klauern/featsync/internal/staging"
)

// ChangeSet is the detected difference between the local feature set and the
// staged remote snapshot. Membership in the three lists is mutually
// exclusive.
type ChangeSet struct {
	// Additions are paths only the remote side has.
	Additions []string
	// Modifications are paths present on both sides whose trimmed text
	// differs.
	Modifications []string
	// Deletions are paths only the local side has.
	Deletions []string
}

// IsEmpty reports whether no differences were detected.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Additions) == 0 && len(cs.Modifications) == 0 && len(cs.Deletions) == 0
}

// Total returns the number of changed documents.
func (cs *ChangeSet) Total() int {
	return len(cs.Additions) + len(cs.Modifications) + len(cs.Deletions)
}

// ClassifiedChanges partitions a change set by how much human attention each
// document needs.
type ClassifiedChanges struct {
	// Simple holds additions and deletions. Pure presence/absence
	// differences are always conflict-free.
	Simple []string
	// AutoResolved holds modifications resolved without a human.
	AutoResolved []Outcome
	// Complex holds modifications needing interactive input.
	Complex []Outcome
	// Failed holds documents whose resolution raised an error.
	Failed []FailedResolution
}

// Manager computes and classifies the change set, delegating modified
// documents to the conflict resolver.
type Manager struct {
	staging  *staging.Manager
	files    *staging.FileReader
	resolver *Resolver
	bus      *events.Bus
}

// NewManager creates a diff manager.
func NewManager(st *staging.Manager, files *staging.FileReader, resolver *Resolver, bus *events.Bus) *Manager {
	return &Manager{staging: st, files: files, resolver: resolver, bus: bus}
}

// DetectChanges computes the change set from the local and staged path
// lists. Paths present on both sides are compared by trimmed full-text
// equality.
func (m *Manager) DetectChanges() (*ChangeSet, error) {
	defer logging.Timer("detect-changes")()

	local, err := m.staging.ListLocal()
	if err != nil {
		return nil, err
	}
	remote, err := m.staging.ListRemote()
	if err != nil {
		return nil, err
	}

	localSet := toSet(local)
	remoteSet := toSet(remote)

	cs := &ChangeSet{}
	for _, rel := range remote {
		if !localSet[rel] {
			cs.Additions = append(cs.Additions, rel)
		}
	}
	for _, rel := range local {
		if !remoteSet[rel] {
			cs.Deletions = append(cs.Deletions, rel)
			continue
		}
		differs, err := m.contentDiffers(rel)
		if err != nil {
			return nil, err
		}
		if differs {
			cs.Modifications = append(cs.Modifications, rel)
		}
	}

	logging.Info("changes detected",
		logging.Operation("detect"),
		logging.Count(cs.Total()),
	)
	if m.bus != nil {
		m.bus.Emit(events.ChangesDetected, cs)
	}
	return cs, nil
}

// contentDiffers compares the two versions of rel by trimmed text.
func (m *Manager) contentDiffers(rel string) (bool, error) {
	local, err := m.files.ReadFile(m.staging.LocalPath(rel))
	if err != nil {
		return false, err
	}
	remote, err := m.files.ReadFile(m.staging.StagedPath(rel))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(local) != strings.TrimSpace(remote), nil
}

// ClassifyChanges places additions and deletions in Simple and hands
// modifications to the resolver.
func (m *Manager) ClassifyChanges(ctx context.Context, cs *ChangeSet) (*ClassifiedChanges, error) {
	classified := &ClassifiedChanges{}
	classified.Simple = append(classified.Simple, cs.Additions...)
	classified.Simple = append(classified.Simple, cs.Deletions...)

	if len(cs.Modifications) == 0 {
		return classified, nil
	}

	batch, err := m.resolver.ResolveAll(ctx, cs.Modifications)
	if err != nil {
		return nil, err
	}
	classified.AutoResolved = batch.AutoResolved
	classified.Complex = batch.Manual
	classified.Failed = batch.Failed
	return classified, nil
}

func toSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}
