// Package export renders the filtered audit trail into a multi-sheet
// workbook: a computed monitoring summary first, then detail sheets
// partitioned by the requested grouping dimensions.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/domain/models"
	"github.com/retailops/stockaudit/internal/service/report"
)

// maxSheetNameLen is the xlsx sheet identifier limit.
const maxSheetNameLen = 31

const (
	summarySheetName = "Summary"
	timestampLayout  = "2006-01-02 15:04:05"
	monthLayout      = "2006-01"
	noRackLabel      = "no rack"
)

// Options are the grouping flags applied to the filtered record set.
type Options struct {
	ByBranch bool
	ByRack   bool
	ByMonth  bool
	// YearlyPeriod gates month partitioning: byMonth only takes effect when
	// a yearly period is active.
	YearlyPeriod bool
}

// Builder renders workbooks.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder wires a workbook builder.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// FileName names the exported file with the export date.
func FileName(now time.Time) string {
	return fmt.Sprintf("stock_audit_%s.xlsx", now.Format("2006-01-02"))
}

// Build renders the workbook into a buffer. Sheet 1 is always the summary;
// detail sheets follow the partition priority: month (under a yearly
// period), then rack, then branch, else a single sheet.
func (b *Builder) Build(records []models.AuditRecord, opts Options) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), summarySheetName); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, records); err != nil {
		return nil, err
	}

	taken := map[string]struct{}{summarySheetName: {}}
	for _, part := range partition(records, opts) {
		name := uniqueSheetName(sanitizeSheetName(part.name), taken)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeDetailSheet(f, name, part.records); err != nil {
			return nil, err
		}
	}

	idx, err := f.GetSheetIndex(summarySheetName)
	if err == nil {
		f.SetActiveSheet(idx)
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	b.logger.Info("workbook built",
		zap.Int("records", len(records)),
		zap.Int("sheets", len(f.GetSheetList())))
	return buf, nil
}

type sheetPart struct {
	name    string
	records []models.AuditRecord
}

func partition(records []models.AuditRecord, opts Options) []sheetPart {
	switch {
	case opts.ByMonth && opts.YearlyPeriod:
		return partitionByMonth(records, opts.ByBranch)
	case opts.ByRack:
		return partitionByRack(records)
	case opts.ByBranch:
		return partitionByBranch(records, "")
	default:
		if len(records) == 0 {
			return nil
		}
		return []sheetPart{{name: "Records", records: records}}
	}
}

// partitionByMonth groups by calendar month first; months with no matching
// records simply produce no sheet. With byBranch set, each month is
// sub-partitioned by branch.
func partitionByMonth(records []models.AuditRecord, byBranch bool) []sheetPart {
	byMonth := make(map[string][]models.AuditRecord)
	var months []string
	for _, record := range records {
		month := record.SubmittedAt.Format(monthLayout)
		if _, ok := byMonth[month]; !ok {
			months = append(months, month)
		}
		byMonth[month] = append(byMonth[month], record)
	}
	sort.Strings(months)

	var parts []sheetPart
	for _, month := range months {
		if !byBranch {
			parts = append(parts, sheetPart{name: month, records: byMonth[month]})
			continue
		}
		parts = append(parts, partitionByBranch(byMonth[month], month+" ")...)
	}
	return parts
}

// partitionByRack is only meaningful when a single branch is in scope: one
// sheet per distinct rack value, sorted lexicographically, missing racks
// under "no rack".
func partitionByRack(records []models.AuditRecord) []sheetPart {
	byRack := make(map[string][]models.AuditRecord)
	for _, record := range records {
		rack := record.RackLocation
		if rack == "" {
			rack = noRackLabel
		}
		byRack[rack] = append(byRack[rack], record)
	}

	racks := make([]string, 0, len(byRack))
	for rack := range byRack {
		racks = append(racks, rack)
	}
	sort.Strings(racks)

	parts := make([]sheetPart, 0, len(racks))
	for _, rack := range racks {
		parts = append(parts, sheetPart{name: rack, records: byRack[rack]})
	}
	return parts
}

// partitionByBranch keys sheets by branch name, stable by first appearance.
func partitionByBranch(records []models.AuditRecord, prefix string) []sheetPart {
	byBranch := make(map[string][]models.AuditRecord)
	var order []string
	for _, record := range records {
		name := record.BranchName
		if name == "" {
			name = record.BranchCode
		}
		if _, ok := byBranch[name]; !ok {
			order = append(order, name)
		}
		byBranch[name] = append(byBranch[name], record)
	}

	parts := make([]sheetPart, 0, len(order))
	for _, name := range order {
		parts = append(parts, sheetPart{name: prefix + name, records: byBranch[name]})
	}
	return parts
}

// detailHeader is the fixed column order every detail sheet uses.
var detailHeader = []interface{}{
	"Rack", "Item Code", "Item Name", "System Qty", "Counted Qty",
	"Variance", "Location", "Branch", "Unit Price",
	"Operator Name", "Operator Code", "Timestamp",
}

func writeDetailSheet(f *excelize.File, sheet string, records []models.AuditRecord) error {
	if err := f.SetSheetRow(sheet, "A1", &detailHeader); err != nil {
		return fmt.Errorf("sheet %s header: %w", sheet, err)
	}

	for i, record := range records {
		operatorName, operatorCode := "", ""
		if record.Operator != nil {
			operatorName = record.Operator.Name
			operatorCode = record.Operator.Code
		}
		row := []interface{}{
			record.RackLocation,
			record.ItemCode,
			record.ItemName,
			record.SystemQuantity,
			record.CountedQuantity,
			record.Variance,
			record.LocationName,
			record.BranchName,
			record.UnitPrice,
			operatorName,
			operatorCode,
			record.SubmittedAt.Format(timestampLayout),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("sheet %s cell: %w", sheet, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row: %w", sheet, err)
		}
	}
	return nil
}

// writeSummarySheet renders the three summary blocks: distinct racks per
// branch, the date × branch rack matrix and the per-branch operator
// leaderboard.
func writeSummarySheet(f *excelize.File, records []models.AuditRecord) error {
	row := 1
	write := func(values []interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheetName, cell, &values); err != nil {
			return err
		}
		row++
		return nil
	}

	if err := write([]interface{}{"Racks counted per branch"}); err != nil {
		return err
	}
	if err := write([]interface{}{"Branch", "Distinct Racks", "Total Records"}); err != nil {
		return err
	}
	for _, branch := range report.DistinctRackCounts(records) {
		name := branch.BranchName
		if name == "" {
			name = branch.BranchCode
		}
		if err := write([]interface{}{name, branch.DistinctRacks, branch.TotalRecords}); err != nil {
			return err
		}
	}
	row++

	matrix := report.DailyRackMatrix(records)
	header := []interface{}{"Date"}
	for _, branch := range matrix.Branches {
		header = append(header, branch)
	}
	if err := write([]interface{}{"Racks counted per day"}); err != nil {
		return err
	}
	if err := write(header); err != nil {
		return err
	}
	for _, date := range matrix.Dates {
		line := []interface{}{date}
		for _, branch := range matrix.Branches {
			if count, ok := matrix.Cells[date][branch]; ok {
				line = append(line, count)
			} else {
				// sparse cells stay empty, not zero
				line = append(line, "")
			}
		}
		if err := write(line); err != nil {
			return err
		}
	}
	row++

	if err := write([]interface{}{"Operator completion share"}); err != nil {
		return err
	}
	for _, board := range report.Leaderboards(records) {
		name := board.BranchName
		if name == "" {
			name = board.BranchCode
		}
		if err := write([]interface{}{"Branch: " + name}); err != nil {
			return err
		}
		if err := write([]interface{}{"Operator", "Code", "Records", "Share %"}); err != nil {
			return err
		}
		for _, op := range board.Operators {
			share := fmt.Sprintf("%.1f", op.Percent)
			if err := write([]interface{}{op.Name, op.Code, op.Count, share}); err != nil {
				return err
			}
		}
		row++
	}
	return nil
}

// sanitizeSheetName strips characters xlsx forbids in sheet identifiers and
// truncates to the 31-character limit.
func sanitizeSheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		default:
			return r
		}
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "Sheet"
	}
	runes := []rune(cleaned)
	if len(runes) > maxSheetNameLen {
		cleaned = string(runes[:maxSheetNameLen])
	}
	return cleaned
}

func uniqueSheetName(name string, taken map[string]struct{}) string {
	candidate := name
	for n := 2; ; n++ {
		if _, dup := taken[candidate]; !dup {
			break
		}
		suffix := fmt.Sprintf(" %d", n)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetNameLen {
			runes = runes[:maxSheetNameLen-len(suffix)]
		}
		candidate = string(runes) + suffix
	}
	taken[candidate] = struct{}{}
	return candidate
}
