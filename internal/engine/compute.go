package engine

import (
	"math"

	"moneytrees/internal/core"
)

// computeView is the recompute step: a total, pure function over the
// last-known source values. Missing inputs map to defined fallbacks
// (absent budget, zero total, empty breakdown); it never fails.
func computeView(budget *core.Budget, total core.Money, breakdown map[string]core.Money) core.BudgetView {
	view := core.BudgetView{
		TotalSpent: total,
		Breakdown:  breakdown,
	}
	if view.Breakdown == nil {
		view.Breakdown = map[string]core.Money{}
	}
	if budget == nil {
		return view
	}

	view.CurrentBudget = budget
	view.HasBudget = true
	view.Remaining = budget.Amount.Sub(total)
	view.Progress = progressPercent(total, budget.Amount)
	view.GoalBar = goalBar(budget.MinGoal, budget.MaxGoal, total)
	return view
}

// progressPercent is round(min(100, max(0, spent/amount*100))). A zero
// budget amount yields 0 rather than dividing by zero.
func progressPercent(spent, amount core.Money) int {
	if amount.Cents <= 0 {
		return 0
	}
	pct := float64(spent.Cents) / float64(amount.Cents) * 100
	pct = math.Max(0, math.Min(100, pct))
	return int(math.Round(pct))
}

// goalBar normalizes the minimum goal, maximum goal and spend total onto a
// [0, maxGoal] scale. A zero maximum collapses every position to zero.
func goalBar(minGoal, maxGoal, spent core.Money) core.GoalBar {
	if maxGoal.Cents <= 0 {
		return core.GoalBar{}
	}
	norm := func(m core.Money) float64 {
		p := float64(m.Cents) / float64(maxGoal.Cents)
		return math.Max(0, math.Min(1, p))
	}
	return core.GoalBar{
		Min:   norm(minGoal),
		Max:   1,
		Spent: norm(spent),
	}
}
