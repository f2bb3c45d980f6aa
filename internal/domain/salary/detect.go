package salary

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is an aggregation operation over salary records.
type Op string

// Supported aggregation operations.
const (
	OpStats Op = "salary_stats"
	OpTotal Op = "total_salary"
	OpAvg   Op = "avg_salary"
	OpCount Op = "count_employees"
	OpMax   Op = "max_salary"
	OpMin   Op = "min_salary"
)

// ParseOp maps a request string to a known Op, defaulting to OpStats.
func ParseOp(s string) Op {
	switch Op(strings.ToLower(strings.TrimSpace(s))) {
	case OpTotal:
		return OpTotal
	case OpAvg:
		return OpAvg
	case OpCount:
		return OpCount
	case OpMax:
		return OpMax
	case OpMin:
		return OpMin
	default:
		return OpStats
	}
}

var aggKeywords = []string{
	"total", "sum", "average", "avg", "mean", "count",
	"maximum", "max", "highest", "minimum", "min", "lowest",
	"median", "top ", "top-",
}

var targetKeywords = []string{
	"employee", "employees", "salary", "basic", "basicsalary", "pay", "wage",
}

// LooksLikeAggregation reports whether the question asks for a global
// aggregate over the salary corpus rather than for document content.
func LooksLikeAggregation(question string) bool {
	q := strings.ToLower(question)
	return containsAny(q, aggKeywords) && containsAny(q, targetKeywords)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// PickOp chooses the aggregation operation implied by the question.
func PickOp(question string) Op {
	q := strings.ToLower(question)
	salaryish := strings.Contains(q, "salary") || strings.Contains(q, "basic")
	switch {
	case salaryish && containsAny(q, []string{"max", "maximum", "highest"}):
		return OpMax
	case salaryish && containsAny(q, []string{"min", "minimum", "lowest"}):
		return OpMin
	case salaryish && containsAny(q, []string{"total", "sum"}):
		return OpTotal
	case salaryish && containsAny(q, []string{"average", "avg", "mean"}):
		return OpAvg
	case strings.Contains(q, "count") && strings.Contains(q, "employee"):
		return OpCount
	default:
		return OpStats
	}
}

// Statement renders the exact numeric result for the given operation.
// This text is authoritative; the generation model only adds explanation.
func (s Summary) Statement(op Op) string {
	switch op {
	case OpTotal:
		return "Total basic salary (ALL employees) = " + fmtNum(s.TotalSalary)
	case OpAvg:
		return "Average basic salary (ALL employees) = " + fmtNum(s.AvgSalary)
	case OpCount:
		return fmt.Sprintf("Employee count = %d", s.EmployeeCount)
	case OpMax:
		return fmt.Sprintf("Max basic salary = %s (Employee: %s | ID: %s)",
			fmtNum(s.MaxSalary), employeeName(s.MaxEmployee), employeeIDOf(s.MaxEmployee))
	case OpMin:
		return fmt.Sprintf("Min basic salary = %s (Employee: %s | ID: %s)",
			fmtNum(s.MinSalary), employeeName(s.MinEmployee), employeeIDOf(s.MinEmployee))
	default:
		return fmt.Sprintf("Employees=%d, Total=%s, Avg=%s, Min=%s, Max=%s",
			s.EmployeeCount, fmtNum(s.TotalSalary), fmtNum(s.AvgSalary),
			fmtNum(s.MinSalary), fmtNum(s.MaxSalary))
	}
}

func fmtNum(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func employeeName(e *Employee) string {
	if e == nil {
		return ""
	}
	return e.Name
}

func employeeIDOf(e *Employee) string {
	if e == nil {
		return ""
	}
	return e.ID
}
