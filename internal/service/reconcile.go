package service

import (
	"context"
	"time"
)

// ReconcileResult lists what a reconciliation pass removed.
type ReconcileResult struct {
	Projects    []string `json:"projects"`
	Attachments []string `json:"attachments"`
}

// Reconcile removes projects no user links to and attachments no task
// references, as long as they are older than grace. These are the leftovers
// of an AddProject or SaveAttachments interrupted between its two writes.
// Projects go first so attachments of removed projects are swept too.
func (s *Service) Reconcile(ctx context.Context, grace time.Duration) (ReconcileResult, error) {
	cutoff := s.now().UTC().Add(-grace)

	var res ReconcileResult
	projects, err := s.store.DeleteOrphanProjects(ctx, cutoff)
	if err != nil {
		return res, err
	}
	res.Projects = projects

	attachments, err := s.store.DeleteOrphanAttachments(ctx, cutoff)
	if err != nil {
		return res, err
	}
	res.Attachments = attachments

	s.logger.InfoContext(ctx, "reconciliation finished",
		"projects_removed", len(projects), "attachments_removed", len(attachments),
		"cutoff", cutoff.Format(time.RFC3339))
	return res, nil
}
