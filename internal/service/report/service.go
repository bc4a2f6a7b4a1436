// Package report keeps the audit-trail dataset in memory and runs the
// supervisor-facing filtering, grouping and summary computations over it.
package report

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/domain/models"
	"github.com/retailops/stockaudit/internal/metrics"
	"github.com/retailops/stockaudit/pkg/clients/inventory"
)

// RefreshCause distinguishes the periodic background poll from a
// user-initiated change. Only the latter resets pagination.
type RefreshCause string

const (
	BackgroundRefresh RefreshCause = "background"
	UserFilterChange  RefreshCause = "user"
)

const defaultPageSize = 20

// FilterState is the current set of composed predicates. All active filters
// apply conjunctively.
type FilterState struct {
	Query      string     `json:"query,omitempty"`
	BranchCode string     `json:"branch_code,omitempty"`
	Rack       string     `json:"rack,omitempty"`
	Period     PeriodType `json:"period,omitempty"`
	Range      *DateRange `json:"range,omitempty"`
}

// Service owns the fetched record set, the filter state and pagination.
type Service struct {
	client   inventory.Client
	logger   *zap.Logger
	pageSize int

	mu          sync.RWMutex
	records     []models.AuditRecord
	filter      FilterState
	page        int
	rackOptions []string
}

// NewService wires the reporting service.
func NewService(client inventory.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:   client,
		logger:   logger,
		pageSize: defaultPageSize,
		page:     1,
	}
}

// Refresh fetches the full audit trail and recomputes the derived rack
// options. A background refresh keeps the caller's current page; a
// user-initiated one resets it to 1.
func (s *Service) Refresh(ctx context.Context, cause RefreshCause) error {
	records, err := s.client.FetchAuditRecords(ctx)
	if err != nil {
		return err
	}
	metrics.ReportRefreshesTotal.WithLabelValues(string(cause)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.recomputeRackOptionsLocked()
	if cause == UserFilterChange {
		s.page = 1
	}
	s.logger.Debug("report dataset refreshed",
		zap.String("cause", string(cause)),
		zap.Int("records", len(records)))
	return nil
}

// SetQuery applies the free-text filter.
func (s *Service) SetQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Query = strings.TrimSpace(query)
	s.page = 1
}

// SetBranch applies the exact-branch filter; an empty code clears it. When
// the previously selected rack does not belong to the new branch's distinct
// rack set, the rack filter is reset.
func (s *Service) SetBranch(branchCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.BranchCode = branchCode
	s.recomputeRackOptionsLocked()
	s.page = 1
}

// SetRack applies the exact-rack filter; an empty value clears it.
func (s *Service) SetRack(rack string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Rack = rack
	s.page = 1
}

// SetPeriod resolves a date range from the period type and anchor date.
// Switching the period type always drops the previously resolved range; a
// range never leaks across type changes.
func (s *Service) SetPeriod(period PeriodType, anchor time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Period = period
	s.filter.Range = nil
	s.page = 1

	resolved, err := ResolveRange(period, anchor)
	if err != nil {
		return err
	}
	s.filter.Range = &resolved
	return nil
}

// SetCustomRange applies a two-sided user-chosen range for the custom
// period type.
func (s *Service) SetCustomRange(start, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Period = PeriodCustom
	s.filter.Range = &DateRange{Start: truncateToDay(start), End: truncateToDay(end)}
	s.page = 1
}

// ClearPeriod removes the date predicate entirely.
func (s *Service) ClearPeriod() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Period = ""
	s.filter.Range = nil
	s.page = 1
}

// SetPage moves user-facing pagination.
func (s *Service) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 {
		page = 1
	}
	s.page = page
}

// Filter returns the current filter state.
func (s *Service) Filter() FilterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// RackOptions returns the distinct rack values for the branch currently in
// scope (all branches when no branch filter is set), sorted.
func (s *Service) RackOptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.rackOptions))
	copy(out, s.rackOptions)
	return out
}

// Filtered applies all active predicates over the full record set.
func (s *Service) Filtered() []models.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filteredLocked()
}

// PageResult is one page of filtered records.
type PageResult struct {
	Records    []models.AuditRecord `json:"records"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
	Total      int                  `json:"total"`
}

// Page slices the filtered set at the current page.
func (s *Service) Page() PageResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := s.filteredLocked()
	total := len(filtered)
	totalPages := (total + s.pageSize - 1) / s.pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	page := s.page
	if page > totalPages {
		page = totalPages
	}

	low := (page - 1) * s.pageSize
	high := low + s.pageSize
	if low > total {
		low = total
	}
	if high > total {
		high = total
	}

	return PageResult{
		Records:    filtered[low:high],
		Page:       page,
		PageSize:   s.pageSize,
		TotalPages: totalPages,
		Total:      total,
	}
}

// Records returns a copy of the unfiltered dataset.
func (s *Service) Records() []models.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Service) filteredLocked() []models.AuditRecord {
	var out []models.AuditRecord
	for _, record := range s.records {
		if s.matchesLocked(record) {
			out = append(out, record)
		}
	}
	return out
}

func (s *Service) matchesLocked(record models.AuditRecord) bool {
	f := s.filter
	if f.Query != "" && !matchesQuery(record, f.Query) {
		return false
	}
	if f.BranchCode != "" && record.BranchCode != f.BranchCode {
		return false
	}
	if f.Rack != "" && record.RackLocation != f.Rack {
		return false
	}
	if f.Range != nil && !f.Range.Contains(record.SubmittedAt) {
		return false
	}
	return true
}

// matchesQuery does a case-insensitive substring match against item code,
// item name and rack location.
func matchesQuery(record models.AuditRecord, query string) bool {
	needle := strings.ToLower(query)
	return strings.Contains(strings.ToLower(record.ItemCode), needle) ||
		strings.Contains(strings.ToLower(record.ItemName), needle) ||
		strings.Contains(strings.ToLower(record.RackLocation), needle)
}

// recomputeRackOptionsLocked rebuilds the distinct rack set for the branch
// in scope and drops the rack filter when the selection no longer belongs.
func (s *Service) recomputeRackOptionsLocked() {
	seen := make(map[string]struct{})
	var options []string
	for _, record := range s.records {
		if s.filter.BranchCode != "" && record.BranchCode != s.filter.BranchCode {
			continue
		}
		if record.RackLocation == "" {
			continue
		}
		if _, dup := seen[record.RackLocation]; dup {
			continue
		}
		seen[record.RackLocation] = struct{}{}
		options = append(options, record.RackLocation)
	}
	sort.Strings(options)
	s.rackOptions = options

	if s.filter.Rack != "" {
		if _, ok := seen[s.filter.Rack]; !ok {
			s.filter.Rack = ""
		}
	}
}
