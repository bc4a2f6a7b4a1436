package report

import (
	"sort"
	"time"

	"github.com/retailops/stockaudit/internal/domain/models"
)

const summaryDateLayout = "2006-01-02"

// DistinctRackCounts aggregates, per branch, how many distinct rack values
// were ever recorded. A rack counted five times counts once. Branches keep
// their first-appearance order.
func DistinctRackCounts(records []models.AuditRecord) []models.BranchRackCount {
	racks := make(map[string]map[string]struct{})
	totals := make(map[string]int)
	names := make(map[string]string)
	var order []string

	for _, record := range records {
		if _, ok := racks[record.BranchCode]; !ok {
			racks[record.BranchCode] = make(map[string]struct{})
			names[record.BranchCode] = record.BranchName
			order = append(order, record.BranchCode)
		}
		if record.RackLocation != "" {
			racks[record.BranchCode][record.RackLocation] = struct{}{}
		}
		totals[record.BranchCode]++
	}

	out := make([]models.BranchRackCount, 0, len(order))
	for _, code := range order {
		out = append(out, models.BranchRackCount{
			BranchCode:    code,
			BranchName:    names[code],
			DistinctRacks: len(racks[code]),
			TotalRecords:  totals[code],
		})
	}
	return out
}

// RackMatrix is a date × branch grid of distinct-rack counts per day. Cells
// with no submissions stay absent, not zero.
type RackMatrix struct {
	Dates    []string
	Branches []string
	// Cells maps date → branch code → distinct racks counted that day.
	Cells map[string]map[string]int
}

// DailyRackMatrix computes the per-day distinct-rack counts for each branch.
// Dates are sorted ascending; branches keep first-appearance order.
func DailyRackMatrix(records []models.AuditRecord) RackMatrix {
	perCell := make(map[string]map[string]map[string]struct{})
	var branches []string
	seenBranch := make(map[string]struct{})

	for _, record := range records {
		date := record.SubmittedAt.Format(summaryDateLayout)
		if _, ok := perCell[date]; !ok {
			perCell[date] = make(map[string]map[string]struct{})
		}
		if _, ok := perCell[date][record.BranchCode]; !ok {
			perCell[date][record.BranchCode] = make(map[string]struct{})
		}
		if record.RackLocation != "" {
			perCell[date][record.BranchCode][record.RackLocation] = struct{}{}
		}
		if _, ok := seenBranch[record.BranchCode]; !ok {
			seenBranch[record.BranchCode] = struct{}{}
			branches = append(branches, record.BranchCode)
		}
	}

	matrix := RackMatrix{
		Branches: branches,
		Cells:    make(map[string]map[string]int, len(perCell)),
	}
	for date, byBranch := range perCell {
		matrix.Dates = append(matrix.Dates, date)
		cells := make(map[string]int, len(byBranch))
		for branch, rackSet := range byBranch {
			if len(rackSet) > 0 {
				cells[branch] = len(rackSet)
			}
		}
		matrix.Cells[date] = cells
	}
	sort.Strings(matrix.Dates)
	return matrix
}

// OperatorShare is one operator's completion share within a branch.
type OperatorShare struct {
	Name    string  `json:"name"`
	Code    string  `json:"code"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// BranchLeaderboard ranks a branch's operators by submitted records.
type BranchLeaderboard struct {
	BranchCode string          `json:"branch_code"`
	BranchName string          `json:"branch_name"`
	Operators  []OperatorShare `json:"operators"`
}

// Leaderboards computes, per branch, each operator's record count and its
// percentage of the branch total, sorted descending by count.
func Leaderboards(records []models.AuditRecord) []BranchLeaderboard {
	type opKey struct{ name, code string }

	perBranch := make(map[string]map[opKey]int)
	totals := make(map[string]int)
	names := make(map[string]string)
	var order []string

	for _, record := range records {
		if _, ok := perBranch[record.BranchCode]; !ok {
			perBranch[record.BranchCode] = make(map[opKey]int)
			names[record.BranchCode] = record.BranchName
			order = append(order, record.BranchCode)
		}
		key := opKey{name: "unassigned"}
		if record.Operator != nil {
			key = opKey{name: record.Operator.Name, code: record.Operator.Code}
		}
		perBranch[record.BranchCode][key]++
		totals[record.BranchCode]++
	}

	out := make([]BranchLeaderboard, 0, len(order))
	for _, branch := range order {
		board := BranchLeaderboard{BranchCode: branch, BranchName: names[branch]}
		total := totals[branch]
		for key, count := range perBranch[branch] {
			percent := 0.0
			if total > 0 {
				percent = float64(count) / float64(total) * 100
			}
			board.Operators = append(board.Operators, OperatorShare{
				Name:    key.name,
				Code:    key.code,
				Count:   count,
				Percent: percent,
			})
		}
		sort.SliceStable(board.Operators, func(i, j int) bool {
			if board.Operators[i].Count != board.Operators[j].Count {
				return board.Operators[i].Count > board.Operators[j].Count
			}
			return board.Operators[i].Name < board.Operators[j].Name
		})
		out = append(out, board)
	}
	return out
}

// Snapshot bundles the summary aggregates for a given day, ready for the
// journal database and the supervisors' spreadsheet.
func Snapshot(records []models.AuditRecord, day time.Time) models.MonitoringSnapshot {
	return models.MonitoringSnapshot{
		Date:      time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		Branches:  DistinctRackCounts(records),
		CreatedAt: time.Now().UTC(),
	}
}
