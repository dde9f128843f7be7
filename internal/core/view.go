package core

// CategoryAmount is an amount aggregated under one category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// GoalBar places the minimum goal, maximum goal and total spent along a
// [0, MaxGoal] scale, each normalized into [0, 1]. All positions are zero
// when the maximum goal is zero.
type GoalBar struct {
	Min   float64
	Max   float64
	Spent float64
}

// BudgetView is the derived aggregate bundle for one user session:
// current budget, spend totals, progress and the per-category breakdown.
// It is recomputed from last-known source values, never persisted.
type BudgetView struct {
	CurrentBudget *Budget
	TotalSpent    Money
	Progress      int // percent spent, always in [0, 100]
	HasBudget     bool
	Remaining     Money // meaningful only when HasBudget
	Breakdown     map[string]Money
	GoalBar       GoalBar
}

// BreakdownTotal sums the per-category amounts.
func (v BudgetView) BreakdownTotal() Money {
	var total Money
	for _, amt := range v.Breakdown {
		total = total.Add(amt)
	}
	return total
}
