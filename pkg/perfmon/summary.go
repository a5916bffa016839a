package perfmon

import (
	"slices"
	"sort"
)

// Budgets maps a metric to the highest acceptable latest value.
type Budgets map[MetricName]float64

// DefaultBudgets returns the fixed web vital budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		MetricLCP:  2500,
		MetricFID:  100,
		MetricCLS:  0.1,
		MetricFCP:  1800,
		MetricTTFB: 600,
	}
}

// Summary is a reduction of the current buffers.
type Summary struct {
	PageLoadTime   float64                `json:"pageLoadTime"`
	TotalResources int                    `json:"totalResources"`
	ResourceSize   float64                `json:"resourceSize"`
	WebVitals      map[MetricName]float64 `json:"webVitals"`
	Errors         int                    `json:"errors"`
	UserActions    int                    `json:"userActions"`
}

// BudgetResult compares the latest value of one metric with its budget.
type BudgetResult struct {
	Metric MetricName `json:"metric"`
	Value  float64    `json:"value"`
	Budget float64    `json:"budget"`
	Passed bool       `json:"passed"`
}

// BudgetReport holds every comparison made by CheckBudget.
type BudgetReport struct {
	Passed  bool           `json:"passed"`
	Results []BudgetResult `json:"results"`
}

// Summarize reduces buffers into a Summary.
func Summarize(buffers map[MetricName][]Sample) Summary {
	summary := Summary{
		WebVitals: make(map[MetricName]float64),
	}

	if nav, ok := latest(buffers, MetricNavigation); ok {
		summary.PageLoadTime, _ = nav.Field("loadComplete")
	}

	resources := buffers[MetricResource]
	summary.TotalResources = len(resources)
	for _, res := range resources {
		size, _ := res.Field("size")
		summary.ResourceSize += size
	}

	for _, name := range WebVitals {
		if s, ok := latest(buffers, name); ok {
			summary.WebVitals[name] = s.Value
		}
	}

	summary.Errors = len(buffers[MetricError])
	summary.UserActions = len(buffers[MetricUserAction])
	return summary
}

// CheckBudget compares the latest value of every budgeted metric with its
// threshold. Metrics without samples are skipped.
func CheckBudget(buffers map[MetricName][]Sample, budgets Budgets) BudgetReport {
	report := BudgetReport{Passed: true, Results: []BudgetResult{}}

	for _, name := range budgetOrder(budgets) {
		s, ok := latest(buffers, name)
		if !ok {
			continue
		}
		threshold := budgets[name]
		result := BudgetResult{
			Metric: name,
			Value:  s.Value,
			Budget: threshold,
			Passed: s.Value <= threshold,
		}
		if !result.Passed {
			report.Passed = false
		}
		report.Results = append(report.Results, result)
	}
	return report
}

// budgetOrder lists web vitals first, then any other budgeted metric by name.
func budgetOrder(budgets Budgets) []MetricName {
	order := make([]MetricName, 0, len(budgets))
	for _, name := range WebVitals {
		if _, ok := budgets[name]; ok {
			order = append(order, name)
		}
	}

	var extra []MetricName
	for name := range budgets {
		if !slices.Contains(WebVitals, name) {
			extra = append(extra, name)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(order, extra...)
}

func latest(buffers map[MetricName][]Sample, name MetricName) (Sample, bool) {
	buf := buffers[name]
	if len(buf) == 0 {
		return Sample{}, false
	}
	return buf[len(buf)-1], true
}
