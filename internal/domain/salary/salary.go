// Package salary computes exact aggregate statistics over ingested
// employee records. Aggregation questions are answered from a full
// collection scan instead of Top-K retrieval, because a language model
// must never be trusted to sum numbers.
package salary

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/warehouse-ai/ragcore/internal/domain"
)

var (
	salaryRe = regexp.MustCompile(`(?i)\bBASICSALARY\s*:\s*([0-9]+(?:\.[0-9]+)?)\b`)
	nameRe   = regexp.MustCompile(`(?i)\bEMPLOYEENAME\s*:\s*([^|]+)`)
)

// Employee pins the record behind a min/max extremum.
type Employee struct {
	ID     string  `json:"employee_id"`
	Name   string  `json:"employee_name"`
	Salary float64 `json:"basic_salary"`
}

// Summary holds exact statistics computed from every stored point.
type Summary struct {
	EmployeeCount     int       `json:"employee_count"`
	SalaryValuesFound int       `json:"salary_values_found"`
	TotalSalary       float64   `json:"total_salary"`
	AvgSalary         float64   `json:"avg_salary"`
	MinSalary         float64   `json:"min_salary"`
	MaxSalary         float64   `json:"max_salary"`
	MinEmployee       *Employee `json:"min_salary_employee,omitempty"`
	MaxEmployee       *Employee `json:"max_salary_employee,omitempty"`
	DedupByEmployeeID bool      `json:"dedup_by_employee_id"`
	PointsScanned     int       `json:"points_scanned"`
	CollectionCount   int64     `json:"collection_points_count"`
}

// Compute walks all points and aggregates salary figures. Points are
// deduplicated by employee id when the payload carries one, so
// re-uploaded rows do not inflate totals.
func Compute(points []domain.ScrollPoint) Summary {
	var s Summary
	s.PointsScanned = len(points)

	seen := make(map[string]struct{})

	for _, p := range points {
		empID := employeeID(p.Payload)
		if empID != "" {
			if _, dup := seen[empID]; dup {
				continue
			}
			seen[empID] = struct{}{}
		}

		sal, ok := extractSalary(p.Payload)
		if !ok {
			continue
		}

		s.TotalSalary += sal
		s.SalaryValuesFound++

		emp := &Employee{ID: empID, Name: extractName(p.Payload), Salary: sal}
		if s.MinEmployee == nil || sal < s.MinSalary {
			s.MinSalary = sal
			s.MinEmployee = emp
		}
		if s.MaxEmployee == nil || sal > s.MaxSalary {
			s.MaxSalary = sal
			s.MaxEmployee = emp
		}
	}

	s.DedupByEmployeeID = len(seen) > 0
	if s.DedupByEmployeeID {
		s.EmployeeCount = len(seen)
	} else {
		s.EmployeeCount = s.SalaryValuesFound
	}
	if s.EmployeeCount > 0 {
		s.AvgSalary = s.TotalSalary / float64(s.EmployeeCount)
	}
	return s
}

func employeeID(payload map[string]any) string {
	for _, key := range []string{"EMPLOYEEID", "employeeid", "employee_id", "EmployeeId"} {
		if v, ok := payload[key]; ok {
			if s := strings.TrimSpace(stringify(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractSalary prefers a structured salary field and falls back to
// parsing "BASICSALARY: n" out of the prompt text.
func extractSalary(payload map[string]any) (float64, bool) {
	for _, key := range []string{"BASICSALARY", "basicSalary", "SALARY", "salary"} {
		v, ok := payload[key]
		if !ok {
			continue
		}
		raw := strings.TrimSpace(strings.ReplaceAll(stringify(v), ",", ""))
		if raw == "" {
			continue
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, true
		}
	}

	txt, _ := payload["prompt"].(string)
	if m := salaryRe.FindStringSubmatch(txt); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func extractName(payload map[string]any) string {
	for _, key := range []string{"EMPLOYEENAME", "employee_name", "name", "EmployeeName"} {
		if v, ok := payload[key]; ok {
			if s := strings.TrimSpace(stringify(v)); s != "" {
				return s
			}
		}
	}

	txt, _ := payload["prompt"].(string)
	if m := nameRe.FindStringSubmatch(txt); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// stringify renders scalar payload values the way JSON decoded them.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return ""
	}
}
