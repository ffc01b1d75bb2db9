package service

import (
	"sort"
	"strings"

	"github.com/opsdesk/helpdesk/internal/domain"
)

// ResolveDepartmentName matches a free-text department name against an
// organization's department set. Three tiers, first match wins:
//
//  1. exact name match, case-insensitive
//  2. a department whose name contains the input
//  3. a department whose name is contained in the input, or vice versa
//     (covers abbreviations typed by an end user or an agent)
//
// No match returns nil: callers treat an unmatched department as a valid
// unassigned state, not a failure. Ties within a tier break on the
// lexicographically smallest department identifier so resolution is
// deterministic.
func ResolveDepartmentName(departments []domain.Department, name string) *domain.Department {
	input := strings.ToLower(strings.TrimSpace(name))
	if input == "" {
		return nil
	}

	sorted := make([]domain.Department, len(departments))
	copy(sorted, departments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	tiers := []func(deptName string) bool{
		func(deptName string) bool { return deptName == input },
		func(deptName string) bool { return strings.Contains(deptName, input) },
		func(deptName string) bool {
			return strings.Contains(input, deptName) || strings.Contains(deptName, input)
		},
	}

	for _, match := range tiers {
		for i := range sorted {
			if match(strings.ToLower(sorted[i].Name)) {
				return &sorted[i]
			}
		}
	}
	return nil
}
