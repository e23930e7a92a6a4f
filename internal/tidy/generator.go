package tidy

import "context"

// PlanGenerator produces an OrganizationPlan for a set of scanned files.
//
// Generation is a cancellable task yielding an ordered sequence of insight
// events followed by a terminal plan-or-error result. onInsight is invoked in
// emission order from the generating goroutine; implementations check ctx
// between events so cancellation is cooperative. onInsight may be nil.
type PlanGenerator interface {
	Generate(ctx context.Context, files []FileRecord, instructions string, onInsight func(Insight)) (*OrganizationPlan, error)
}
