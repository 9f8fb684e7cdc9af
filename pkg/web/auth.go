package web

import "github.com/signoffhq/signoff/pkg/models"

// ActingUserHeader carries the identity of the user taking a decision.
// Deployments sit behind a gateway that authenticates and sets this header.
const ActingUserHeader = "X-Acting-User"

// Authorizer decides whether an actor may act on a step. Steps without an
// explicit assignee rely on this predicate to pick the fallback approver set.
type Authorizer func(actor string, step *models.ApprovalStep) bool

// DefaultAuthorizer permits the direct assignee, and any authenticated actor
// when the step has no assignee.
func DefaultAuthorizer(actor string, step *models.ApprovalStep) bool {
	if step.AssignedTo == "" {
		return actor != ""
	}

	return actor == step.AssignedTo
}
