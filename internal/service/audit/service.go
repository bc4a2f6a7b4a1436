// Package audit carries a scan from decoded code to submitted variance: item
// resolution, the in-progress confirmed count, and submission to the audit
// store.
package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/domain/models"
	"github.com/retailops/stockaudit/internal/metrics"
	"github.com/retailops/stockaudit/pkg/clients/inventory"
)

// MaxRackLocationLen bounds the free-text rack label.
const MaxRackLocationLen = 50

// Journal persists submission outcomes locally, best-effort.
type Journal interface {
	RecordSubmission(ctx context.Context, entry models.JournalEntry) error
}

// Service holds the per-session count state. Exactly one inventory record is
// selected at a time; resolving a new code replaces the previous selection.
type Service struct {
	client     inventory.Client
	journal    Journal
	branchCode string
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.Mutex
	current    *models.ConfirmedCount
	candidates []models.InventoryRecord
}

// NewService wires the audit service. journal may be nil; journaling is then
// skipped.
func NewService(client inventory.Client, journal Journal, branchCode string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		client:     client,
		journal:    journal,
		branchCode: branchCode,
		logger:     logger,
		now:        time.Now,
	}
	return s
}

// Resolve looks up a decoded code and installs the first matching record as
// the active confirmed-count basis. Unprivileged callers are scoped to the
// agent's branch and get at most one record; privileged callers may get one
// candidate per branch, deduplicated by (branch, item) pair.
func (s *Service) Resolve(ctx context.Context, code string, privileged bool) (models.ConfirmedCount, []models.InventoryRecord, error) {
	scope := inventory.LookupScope{Privileged: privileged, BranchCode: s.branchCode}
	records, err := s.client.LookupItem(ctx, code, scope)
	if err != nil {
		return models.ConfirmedCount{}, nil, err
	}

	records = dedupeByBranchItem(records)
	if len(records) == 0 {
		nf := &inventory.NotFoundError{Code: code}
		if !privileged {
			nf.BranchCode = s.branchCode
		}
		return models.ConfirmedCount{}, nil, nf
	}

	current := buildConfirmedCount(records[0])

	s.mu.Lock()
	s.current = &current
	s.candidates = records
	s.mu.Unlock()

	s.logger.Info("item resolved",
		zap.String("code", code),
		zap.Bool("privileged", privileged),
		zap.Int("candidates", len(records)))
	return current, records, nil
}

// SelectBranch switches the active count to another fetched candidate,
// re-populating the counted quantity and rack location from that candidate.
// Candidates already fetched are kept.
func (s *Service) SelectBranch(branchCode string) (models.ConfirmedCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return models.ConfirmedCount{}, ErrNoActiveCount
	}
	for _, record := range s.candidates {
		if record.BranchCode == branchCode {
			current := buildConfirmedCount(record)
			s.current = &current
			return current, nil
		}
	}
	return models.ConfirmedCount{}, ErrUnknownBranch
}

// SetCountedQuantity records the operator's counted figure.
func (s *Service) SetCountedQuantity(quantity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoActiveCount
	}
	q := quantity
	s.current.CountedQuantity = &q
	return nil
}

// SetRackLocation records the rack label for the active count.
func (s *Service) SetRackLocation(rack string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoActiveCount
	}
	s.current.RackLocation = rack
	return nil
}

// AttachPhoto stores one evidence photo's metadata, keyed by its storage key.
func (s *Service) AttachPhoto(photo models.PhotoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoActiveCount
	}
	if s.current.Photos == nil {
		s.current.Photos = make(map[string]models.PhotoRecord)
	}
	s.current.Photos[photo.Key] = photo
	return nil
}

// Current returns a copy of the in-progress count, or false when no item is
// resolved.
func (s *Service) Current() (models.ConfirmedCount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.ConfirmedCount{}, false
	}
	return *s.current, true
}

// Candidates returns the branch candidates fetched by the last resolution.
func (s *Service) Candidates() []models.InventoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.InventoryRecord, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Submit validates the active count, sends it to the audit store and clears
// the session so the next scan starts clean. Rate-limit rejections pass
// through as *inventory.RateLimitError and leave the session intact.
func (s *Service) Submit(ctx context.Context) (models.AuditSubmission, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return models.AuditSubmission{}, ErrNoActiveCount
	}
	current := *s.current
	s.mu.Unlock()

	if err := validateCount(current); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeValidation).Inc()
		return models.AuditSubmission{}, err
	}

	variance, _ := Variance(current.CountedQuantity, current.Item.SystemQuantity)
	submission := models.AuditSubmission{
		ItemCode:        current.Item.ItemCode,
		ItemName:        current.Item.ItemName,
		SystemQuantity:  current.Item.SystemQuantity,
		UnitPrice:       current.Item.UnitPrice,
		CountedQuantity: *current.CountedQuantity,
		Variance:        variance,
		LocationName:    current.Item.LocationName,
		BranchCode:      current.Item.BranchCode,
		RackLocation:    strings.TrimSpace(current.RackLocation),
	}

	if err := s.client.SubmitAudit(ctx, submission); err != nil {
		s.recordOutcome(ctx, submission, submitOutcome(err))
		return models.AuditSubmission{}, err
	}

	s.mu.Lock()
	s.current = nil
	s.candidates = nil
	s.mu.Unlock()

	s.recordOutcome(ctx, submission, metrics.OutcomeOK)
	s.logger.Info("audit submitted",
		zap.String("item_code", submission.ItemCode),
		zap.String("branch_code", submission.BranchCode),
		zap.Float64("variance", submission.Variance))
	return submission, nil
}

func (s *Service) recordOutcome(ctx context.Context, sub models.AuditSubmission, outcome string) {
	metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	if s.journal == nil {
		return
	}
	entry := models.JournalEntry{
		At:              s.now().UTC(),
		ItemCode:        sub.ItemCode,
		BranchCode:      sub.BranchCode,
		RackLocation:    sub.RackLocation,
		CountedQuantity: sub.CountedQuantity,
		Variance:        sub.Variance,
		Outcome:         outcome,
	}
	if err := s.journal.RecordSubmission(ctx, entry); err != nil {
		s.logger.Warn("journal write failed", zap.Error(err))
	}
}

func submitOutcome(err error) string {
	switch {
	case inventory.IsRateLimited(err):
		return metrics.OutcomeRateLimited
	default:
		var netErr *inventory.NetworkError
		if errors.As(err, &netErr) {
			return metrics.OutcomeNetwork
		}
		return metrics.OutcomeRemote
	}
}

func validateCount(current models.ConfirmedCount) error {
	if current.CountedQuantity == nil {
		return &ValidationError{Field: "counted quantity", Reason: "required"}
	}
	if *current.CountedQuantity < 0 {
		return &ValidationError{Field: "counted quantity", Reason: "must not be negative"}
	}
	rack := strings.TrimSpace(current.RackLocation)
	if rack == "" {
		return &ValidationError{Field: "rack location", Reason: "required"}
	}
	if len([]rune(rack)) > MaxRackLocationLen {
		return &ValidationError{Field: "rack location", Reason: "must be at most 50 characters"}
	}
	return nil
}

func buildConfirmedCount(record models.InventoryRecord) models.ConfirmedCount {
	current := models.ConfirmedCount{Item: record}
	if record.LastCountedQuantity != nil {
		q := *record.LastCountedQuantity
		current.CountedQuantity = &q
	}
	if record.LastRackLocation != nil {
		current.RackLocation = *record.LastRackLocation
	}
	return current
}

func dedupeByBranchItem(records []models.InventoryRecord) []models.InventoryRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, record := range records {
		key := record.BranchCode + "\x00" + record.ItemCode
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, record)
	}
	return out
}
