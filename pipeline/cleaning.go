package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// 质量问题类型
const (
	IssueCoercionFallback = "coercion_fallback"
	IssueFilledDefault    = "filled_default"
)

// Fallback records one cell that could not be parsed and became FallbackValue.
type Fallback struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Raw    string `json:"raw"`
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // low, medium
	Message  string `json:"message"`
	Row      int    `json:"row"` // -1 表示整列
	Column   string `json:"column"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
}

// Report aggregates the recoverable events of one normalize/coerce pass.
type Report struct {
	Rows      int        `json:"rows"`
	Filled    []string   `json:"filled_defaults,omitempty"`
	Fallbacks []Fallback `json:"fallbacks,omitempty"`
}

// AddFilled records slots that took their default, once per column.
func (r *Report) AddFilled(names ...string) {
	for _, name := range names {
		if !r.HasFilled(name) {
			r.Filled = append(r.Filled, name)
		}
	}
}

func (r *Report) HasFilled(name string) bool {
	for _, existing := range r.Filled {
		if existing == name {
			return true
		}
	}
	return false
}

func (r *Report) AddFallback(f Fallback) {
	r.Fallbacks = append(r.Fallbacks, f)
}

// FallbackCounts returns the number of substituted cells per column.
func (r *Report) FallbackCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Fallbacks {
		counts[f.Column]++
	}
	return counts
}

// Issues 按记录顺序列出问题：先是缺失列，再是逐格回退
func (r *Report) Issues() []QualityIssue {
	issues := make([]QualityIssue, 0, len(r.Filled)+len(r.Fallbacks))
	for _, column := range r.Filled {
		issues = append(issues, QualityIssue{
			Type:     IssueFilledDefault,
			Severity: "medium",
			Message:  fmt.Sprintf("column %q missing from input, filled with default", column),
			Row:      -1,
			Column:   column,
		})
	}
	for _, f := range r.Fallbacks {
		issues = append(issues, QualityIssue{
			Type:     IssueCoercionFallback,
			Severity: "low",
			Message:  fmt.Sprintf("value %q is not numeric, replaced with %v", f.Raw, FallbackValue),
			Row:      f.Row,
			Column:   f.Column,
		})
	}
	return issues
}

// Stats 汇总问题。含至少一个回退的行计为 Corrected
func (r *Report) Stats() CleaningStats {
	stats := CleaningStats{
		TotalProcessed: int64(r.Rows),
		Issues:         make(map[string]int64),
	}
	corrected := make(map[int]bool)
	for _, f := range r.Fallbacks {
		corrected[f.Row] = true
	}
	stats.Corrected = int64(len(corrected))
	stats.Passed = stats.TotalProcessed - stats.Corrected
	if len(r.Filled) > 0 {
		stats.Issues[IssueFilledDefault] = int64(len(r.Filled))
	}
	if len(r.Fallbacks) > 0 {
		stats.Issues[IssueCoercionFallback] = int64(len(r.Fallbacks))
	}
	return stats
}

// Warnings renders the report as human-readable lines.
func (r *Report) Warnings() []string {
	var warnings []string
	if len(r.Filled) > 0 {
		warnings = append(warnings, fmt.Sprintf("columns missing from input were filled with defaults: %s", strings.Join(r.Filled, ", ")))
	}
	counts := r.FallbackCounts()
	columns := make([]string, 0, len(counts))
	for column := range counts {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		warnings = append(warnings, fmt.Sprintf("%d non-numeric value(s) in %q were replaced with %v", counts[column], column, FallbackValue))
	}
	return warnings
}
