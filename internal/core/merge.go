package core

import (
	"context"

	"placekit/pkg/domain"
)

// MergeReport summarizes one MergeRemote call.
type MergeReport struct {
	Inserted int `json:"inserted"`
	Replaced int `json:"replaced"`
	// Kept counts incoming records that lost to an equal or newer local copy.
	Kept    int `json:"kept"`
	Invalid int `json:"invalid"`
}

// Changed reports whether the merge altered the collection.
func (r MergeReport) Changed() bool { return r.Inserted+r.Replaced > 0 }

// MergeRemote reconciles a remote snapshot into the collection. Unknown ids
// are inserted; a known id is replaced only when the remote copy's
// LastModified is strictly later. Local records absent from the snapshot are
// never removed. Invalid records are skipped and counted. The collection is
// persisted only when the merge changed it.
func (s *PlacedObjectStore) MergeRemote(ctx context.Context, records []domain.PlacedObject) MergeReport {
	ctx, done := s.observe(ctx, "merge_remote")
	report, changes, fns := s.mergeLocked(ctx, records)
	done(nil)
	for _, c := range changes {
		notify(fns, c)
	}
	return report
}

func (s *PlacedObjectStore) mergeLocked(ctx context.Context, records []domain.PlacedObject) (MergeReport, []domain.Change, []func(domain.Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report MergeReport
	var changes []domain.Change
	for _, incoming := range records {
		if err := incoming.Validate(); err != nil {
			report.Invalid++
			s.opts.logger.Warn("skipping invalid remote record", "id", incoming.ID, "error", err)
			continue
		}
		after := incoming
		i, ok := s.index[incoming.ID]
		if !ok {
			s.index[incoming.ID] = len(s.objects)
			s.objects = append(s.objects, incoming)
			report.Inserted++
			changes = append(changes, domain.Change{Action: domain.ActionMerge, ID: incoming.ID, After: &after})
			continue
		}
		local := s.objects[i]
		if !incoming.NewerThan(local) {
			report.Kept++
			continue
		}
		s.objects[i] = incoming
		report.Replaced++
		changes = append(changes, domain.Change{Action: domain.ActionMerge, ID: incoming.ID, Before: &local, After: &after})
	}
	if report.Changed() {
		s.persistLocked(ctx)
	}
	s.opts.logger.Debug("remote snapshot merged",
		"inserted", report.Inserted, "replaced", report.Replaced, "kept", report.Kept, "invalid", report.Invalid)
	return report, changes, s.changeSubs.snapshot()
}
