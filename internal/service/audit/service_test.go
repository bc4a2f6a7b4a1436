package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/retailops/stockaudit/internal/domain/models"
	"github.com/retailops/stockaudit/pkg/clients/inventory"
)

// MockClient is a scripted inventory client for service tests.
type MockClient struct {
	OnLookupItem  func(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error)
	OnSubmitAudit func(ctx context.Context, submission models.AuditSubmission) error
}

func (m *MockClient) LookupItem(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error) {
	if m.OnLookupItem != nil {
		return m.OnLookupItem(ctx, code, scope)
	}
	return nil, nil
}

func (m *MockClient) SubmitAudit(ctx context.Context, submission models.AuditSubmission) error {
	if m.OnSubmitAudit != nil {
		return m.OnSubmitAudit(ctx, submission)
	}
	return nil
}

func (m *MockClient) FetchAuditRecords(ctx context.Context) ([]models.AuditRecord, error) {
	return nil, nil
}

// MockJournal records journal entries in memory.
type MockJournal struct {
	Entries []models.JournalEntry
	Err     error
}

func (m *MockJournal) RecordSubmission(ctx context.Context, entry models.JournalEntry) error {
	if m.Err != nil {
		return m.Err
	}
	m.Entries = append(m.Entries, entry)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func record(itemCode, branchCode string, systemQty float64) models.InventoryRecord {
	return models.InventoryRecord{
		ItemCode:       itemCode,
		ItemName:       "Test Item " + itemCode,
		SystemQuantity: systemQty,
		UnitPrice:      12.5,
		LocationName:   "Main Warehouse",
		BranchCode:     branchCode,
		BranchName:     "Branch " + branchCode,
	}
}

func TestVariance(t *testing.T) {
	cases := []struct {
		name    string
		counted *float64
		system  float64
		want    float64
		wantOK  bool
	}{
		{name: "Overcount", counted: floatPtr(8), system: 5, want: 3, wantOK: true},
		{name: "Undercount", counted: floatPtr(2), system: 5, want: -3, wantOK: true},
		{name: "Exact match", counted: floatPtr(4), system: 4, want: 0, wantOK: true},
		{name: "Fractional", counted: floatPtr(2.5), system: 1.25, want: 1.25, wantOK: true},
		{name: "Not entered yet", counted: nil, system: 5, want: 0, wantOK: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Variance(tc.counted, tc.system)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if got != tc.want {
				t.Fatalf("variance = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveUnprivilegedScopesToOwnBranch(t *testing.T) {
	var capturedScope inventory.LookupScope
	client := &MockClient{
		OnLookupItem: func(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error) {
			capturedScope = scope
			return []models.InventoryRecord{record("X001", "BR-NORTH", 5)}, nil
		},
	}
	svc := NewService(client, nil, "BR-NORTH", nil)

	current, candidates, err := svc.Resolve(context.Background(), "X001", false)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if capturedScope.Privileged {
		t.Fatal("unprivileged resolve must not request a privileged lookup")
	}
	if capturedScope.BranchCode != "BR-NORTH" {
		t.Fatalf("lookup must be pinned to the agent's branch, got %q", capturedScope.BranchCode)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if current.Item.ItemCode != "X001" {
		t.Fatalf("expected X001 selected, got %s", current.Item.ItemCode)
	}
}

func TestResolvePrivilegedDeduplicatesCandidates(t *testing.T) {
	client := &MockClient{
		OnLookupItem: func(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error) {
			return []models.InventoryRecord{
				record("X001", "BR-NORTH", 10),
				record("X001", "BR-SOUTH", 4),
				record("X001", "BR-NORTH", 10), // duplicate pair
			}, nil
		},
	}
	svc := NewService(client, nil, "BR-NORTH", nil)

	current, candidates, err := svc.Resolve(context.Background(), "X001", true)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 deduplicated candidates, got %d", len(candidates))
	}
	if current.Item.BranchCode != "BR-NORTH" {
		t.Fatalf("first candidate should be selected, got %s", current.Item.BranchCode)
	}
}

func TestResolveEmptyResultIsNotFound(t *testing.T) {
	client := &MockClient{
		OnLookupItem: func(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error) {
			return nil, nil
		},
	}
	svc := NewService(client, nil, "BR-NORTH", nil)

	_, _, err := svc.Resolve(context.Background(), "MISSING-01", false)
	if !inventory.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if !strings.Contains(err.Error(), "MISSING-01") {
		t.Fatalf("not-found error should name the code, got %q", err.Error())
	}
	if _, ok := svc.Current(); ok {
		t.Fatal("failed resolution must not install a count")
	}
}

func TestResolvePrepopulatesFromLastCount(t *testing.T) {
	rec := record("X001", "BR-NORTH", 5)
	rec.LastCountedQuantity = floatPtr(7)
	rec.LastRackLocation = strPtr("A3-12")
	client := &MockClient{
		OnLookupItem: func(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error) {
			return []models.InventoryRecord{rec}, nil
		},
	}
	svc := NewService(client, nil, "BR-NORTH", nil)

	current, _, err := svc.Resolve(context.Background(), "X001", false)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if current.CountedQuantity == nil || *current.CountedQuantity != 7 {
		t.Fatalf("expected counted quantity prepopulated to 7, got %v", current.CountedQuantity)
	}
	if current.RackLocation != "A3-12" {
		t.Fatalf("expected rack prepopulated, got %q", current.RackLocation)
	}
}

func TestSelectBranchSwitchesActiveCount(t *testing.T) {
	client := &MockClient{
		OnLookupItem: func(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error) {
			return []models.InventoryRecord{
				record("X001", "BR-NORTH", 10),
				record("X001", "BR-SOUTH", 4),
			}, nil
		},
	}
	svc := NewService(client, nil, "BR-NORTH", nil)

	if _, _, err := svc.Resolve(context.Background(), "X001", true); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	current, err := svc.SelectBranch("BR-SOUTH")
	if err != nil {
		t.Fatalf("branch selection failed: %v", err)
	}
	if current.Item.BranchCode != "BR-SOUTH" {
		t.Fatalf("expected BR-SOUTH selected, got %s", current.Item.BranchCode)
	}
	if current.Item.SystemQuantity != 4 {
		t.Fatalf("expected system quantity of the selected branch, got %v", current.Item.SystemQuantity)
	}
	if len(svc.Candidates()) != 2 {
		t.Fatal("candidates must survive a branch switch")
	}

	if _, err := svc.SelectBranch("BR-WEST"); !errors.Is(err, ErrUnknownBranch) {
		t.Fatalf("expected unknown-branch error, got %v", err)
	}
}

func TestSelectBranchVarianceUsesSelectedBranch(t *testing.T) {
	client := &MockClient{
		OnLookupItem: func(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error) {
			return []models.InventoryRecord{
				record("X001", "BR-NORTH", 10),
				record("X001", "BR-SOUTH", 4),
			}, nil
		},
	}
	var submitted models.AuditSubmission
	client.OnSubmitAudit = func(ctx context.Context, submission models.AuditSubmission) error {
		submitted = submission
		return nil
	}
	svc := NewService(client, nil, "BR-NORTH", nil)

	if _, _, err := svc.Resolve(context.Background(), "X001", true); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, err := svc.SelectBranch("BR-SOUTH"); err != nil {
		t.Fatalf("branch selection failed: %v", err)
	}
	if err := svc.SetCountedQuantity(4); err != nil {
		t.Fatalf("set counted quantity failed: %v", err)
	}
	if err := svc.SetRackLocation("B1-04"); err != nil {
		t.Fatalf("set rack failed: %v", err)
	}
	if _, err := svc.Submit(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if submitted.BranchCode != "BR-SOUTH" {
		t.Fatalf("expected submission against BR-SOUTH, got %s", submitted.BranchCode)
	}
	if submitted.Variance != 0 {
		t.Fatalf("variance must use the selected branch's system quantity, got %v", submitted.Variance)
	}
}

func TestSubmit(t *testing.T) {
	newResolvedService := func(submit func(ctx context.Context, submission models.AuditSubmission) error, journal Journal) *Service {
		client := &MockClient{
			OnLookupItem: func(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error) {
				return []models.InventoryRecord{record("X001", "BR-NORTH", 5)}, nil
			},
			OnSubmitAudit: submit,
		}
		svc := NewService(client, journal, "BR-NORTH", nil)
		if _, _, err := svc.Resolve(context.Background(), "X001", false); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		return svc
	}

	t.Run("Successful submission clears session", func(t *testing.T) {
		var submitted models.AuditSubmission
		journal := &MockJournal{}
		svc := newResolvedService(func(ctx context.Context, submission models.AuditSubmission) error {
			submitted = submission
			return nil
		}, journal)

		svc.SetCountedQuantity(8)
		svc.SetRackLocation("  A3-12  ")

		result, err := svc.Submit(context.Background())
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		if result.Variance != 3 {
			t.Fatalf("expected variance 3 (8 counted vs 5 system), got %v", result.Variance)
		}
		if submitted.RackLocation != "A3-12" {
			t.Fatalf("rack should be trimmed, got %q", submitted.RackLocation)
		}
		if _, ok := svc.Current(); ok {
			t.Fatal("session must be cleared after a successful submission")
		}
		if len(svc.Candidates()) != 0 {
			t.Fatal("candidates must be cleared after a successful submission")
		}
		if len(journal.Entries) != 1 {
			t.Fatalf("expected 1 journal entry, got %d", len(journal.Entries))
		}
		if journal.Entries[0].Outcome != "ok" {
			t.Fatalf("expected ok outcome in journal, got %q", journal.Entries[0].Outcome)
		}
	})

	t.Run("Missing counted quantity", func(t *testing.T) {
		svc := newResolvedService(nil, nil)
		svc.SetRackLocation("A3-12")

		_, err := svc.Submit(context.Background())
		if !IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := svc.Current(); !ok {
			t.Fatal("validation failure must leave the session intact")
		}
	})

	t.Run("Negative counted quantity", func(t *testing.T) {
		svc := newResolvedService(nil, nil)
		svc.SetCountedQuantity(-1)
		svc.SetRackLocation("A3-12")

		if _, err := svc.Submit(context.Background()); !IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("Blank rack location", func(t *testing.T) {
		svc := newResolvedService(nil, nil)
		svc.SetCountedQuantity(5)
		svc.SetRackLocation("   ")

		if _, err := svc.Submit(context.Background()); !IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("Rack location too long", func(t *testing.T) {
		svc := newResolvedService(nil, nil)
		svc.SetCountedQuantity(5)
		svc.SetRackLocation(strings.Repeat("A", MaxRackLocationLen+1))

		if _, err := svc.Submit(context.Background()); !IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("Rack location at limit passes", func(t *testing.T) {
		svc := newResolvedService(nil, nil)
		svc.SetCountedQuantity(5)
		svc.SetRackLocation(strings.Repeat("A", MaxRackLocationLen))

		if _, err := svc.Submit(context.Background()); err != nil {
			t.Fatalf("rack at the limit should pass, got: %v", err)
		}
	})

	t.Run("Rate limit leaves session intact", func(t *testing.T) {
		journal := &MockJournal{}
		svc := newResolvedService(func(ctx context.Context, submission models.AuditSubmission) error {
			return &inventory.RateLimitError{Message: "retry in 15s"}
		}, journal)
		svc.SetCountedQuantity(5)
		svc.SetRackLocation("A3-12")

		_, err := svc.Submit(context.Background())
		if !inventory.IsRateLimited(err) {
			t.Fatalf("expected rate-limit error to pass through, got %v", err)
		}
		if _, ok := svc.Current(); !ok {
			t.Fatal("rate limiting must leave the session intact for retry")
		}
		if len(journal.Entries) != 1 || journal.Entries[0].Outcome != "rate_limited" {
			t.Fatalf("expected a rate_limited journal entry, got %+v", journal.Entries)
		}
	})

	t.Run("Network failure leaves session intact", func(t *testing.T) {
		svc := newResolvedService(func(ctx context.Context, submission models.AuditSubmission) error {
			return &inventory.NetworkError{Op: "submit audit", Err: errors.New("connection refused")}
		}, nil)
		svc.SetCountedQuantity(5)
		svc.SetRackLocation("A3-12")

		if _, err := svc.Submit(context.Background()); err == nil {
			t.Fatal("expected submit error")
		}
		if _, ok := svc.Current(); !ok {
			t.Fatal("network failure must leave the session intact for retry")
		}
	})

	t.Run("Journal failure does not block submission", func(t *testing.T) {
		journal := &MockJournal{Err: errors.New("mongo down")}
		svc := newResolvedService(nil, journal)
		svc.SetCountedQuantity(5)
		svc.SetRackLocation("A3-12")

		if _, err := svc.Submit(context.Background()); err != nil {
			t.Fatalf("journal failure must not fail the submission, got: %v", err)
		}
	})
}

func TestSessionOperationsWithoutActiveCount(t *testing.T) {
	svc := NewService(&MockClient{}, nil, "BR-NORTH", nil)

	if err := svc.SetCountedQuantity(5); !errors.Is(err, ErrNoActiveCount) {
		t.Fatalf("expected no-active-count error, got %v", err)
	}
	if err := svc.SetRackLocation("A3"); !errors.Is(err, ErrNoActiveCount) {
		t.Fatalf("expected no-active-count error, got %v", err)
	}
	if err := svc.AttachPhoto(models.PhotoRecord{Key: "p1"}); !errors.Is(err, ErrNoActiveCount) {
		t.Fatalf("expected no-active-count error, got %v", err)
	}
	if _, err := svc.SelectBranch("BR-NORTH"); !errors.Is(err, ErrNoActiveCount) {
		t.Fatalf("expected no-active-count error, got %v", err)
	}
	if _, err := svc.Submit(context.Background()); !errors.Is(err, ErrNoActiveCount) {
		t.Fatalf("expected no-active-count error, got %v", err)
	}
}

func TestAttachPhotoKeyedByStorageKey(t *testing.T) {
	client := &MockClient{
		OnLookupItem: func(ctx context.Context, code string, scope inventory.LookupScope) ([]models.InventoryRecord, error) {
			return []models.InventoryRecord{record("X001", "BR-NORTH", 5)}, nil
		},
	}
	svc := NewService(client, nil, "BR-NORTH", nil)
	if _, _, err := svc.Resolve(context.Background(), "X001", false); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	svc.AttachPhoto(models.PhotoRecord{Key: "p1", Source: models.PhotoSourceCamera})
	svc.AttachPhoto(models.PhotoRecord{Key: "p2", Source: models.PhotoSourceUpload})
	svc.AttachPhoto(models.PhotoRecord{Key: "p1", Source: models.PhotoSourceExisting}) // same key replaces

	current, ok := svc.Current()
	if !ok {
		t.Fatal("expected active count")
	}
	if len(current.Photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(current.Photos))
	}
	if current.Photos["p1"].Source != models.PhotoSourceExisting {
		t.Fatalf("re-attaching a key must replace its record, got %s", current.Photos["p1"].Source)
	}
}
