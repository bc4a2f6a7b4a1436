package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/retailops/stockaudit/internal/config"
	"github.com/retailops/stockaudit/internal/domain/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.InventoryConfig{BaseURL: server.URL, APIToken: "test-token"})
}

func TestLookupItem(t *testing.T) {
	t.Run("Unprivileged lookup is branch scoped", func(t *testing.T) {
		var gotBranch, gotAuth string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotBranch = r.URL.Query().Get("branch_code")
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []models.InventoryRecord{{ItemCode: "X001", BranchCode: "BR-NORTH", SystemQuantity: 5}},
			})
		})

		items, err := client.LookupItem(context.Background(), "X001", LookupScope{BranchCode: "BR-NORTH"})
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if gotBranch != "BR-NORTH" {
			t.Fatalf("expected branch_code param, got %q", gotBranch)
		}
		if gotAuth != "Bearer test-token" {
			t.Fatalf("expected bearer token header, got %q", gotAuth)
		}
		if len(items) != 1 || items[0].ItemCode != "X001" {
			t.Fatalf("unexpected items %+v", items)
		}
	})

	t.Run("Privileged lookup omits branch scope", func(t *testing.T) {
		var hadBranch bool
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			hadBranch = r.URL.Query().Has("branch_code")
			json.NewEncoder(w).Encode(map[string]interface{}{"items": []models.InventoryRecord{}})
		})

		if _, err := client.LookupItem(context.Background(), "X001", LookupScope{Privileged: true, BranchCode: "BR-NORTH"}); err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if hadBranch {
			t.Fatal("privileged lookup must not pin a branch")
		}
	})

	t.Run("404 maps to not-found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.LookupItem(context.Background(), "MISSING-01", LookupScope{BranchCode: "BR-NORTH"})
		if !IsNotFound(err) {
			t.Fatalf("expected not-found error, got %v", err)
		}
		var nf *NotFoundError
		errors.As(err, &nf)
		if nf.Code != "MISSING-01" || nf.BranchCode != "BR-NORTH" {
			t.Fatalf("not-found error should carry code and branch, got %+v", nf)
		}
	})

	t.Run("Server error maps to remote error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"database unavailable","code":"internal"}}`)
		})

		_, err := client.LookupItem(context.Background(), "X001", LookupScope{BranchCode: "BR-NORTH"})
		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("expected remote error, got %v", err)
		}
		if remote.Status != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", remote.Status)
		}
		if !strings.Contains(remote.Message, "database unavailable") {
			t.Fatalf("expected remote message carried over, got %q", remote.Message)
		}
	})

	t.Run("Empty code rejected locally", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request should be sent for an empty code")
		})

		if _, err := client.LookupItem(context.Background(), "  ", LookupScope{}); !errors.Is(err, ErrEmptyCode) {
			t.Fatalf("expected ErrEmptyCode, got %v", err)
		}
	})

	t.Run("Transport failure maps to network error", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close() // connection refused from now on
		client := NewClient(config.InventoryConfig{BaseURL: server.URL, APIToken: "test-token"})

		_, err := client.LookupItem(context.Background(), "X001", LookupScope{})
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("expected network error, got %v", err)
		}
	})
}

func TestSubmitAudit(t *testing.T) {
	submission := models.AuditSubmission{
		ItemCode:        "X001",
		CountedQuantity: 8,
		SystemQuantity:  5,
		Variance:        3,
		BranchCode:      "BR-NORTH",
		RackLocation:    "A3-12",
	}

	t.Run("Successful submission", func(t *testing.T) {
		var body models.AuditSubmission
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/audits" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusCreated)
		})

		if err := client.SubmitAudit(context.Background(), submission); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		if body.ItemCode != "X001" || body.Variance != 3 {
			t.Fatalf("unexpected payload %+v", body)
		}
	})

	t.Run("429 maps to rate limit with wait message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"too many submissions","code":"rate_limited","wait":"retry in 15s"}}`)
		})

		err := client.SubmitAudit(context.Background(), submission)
		if !IsRateLimited(err) {
			t.Fatalf("expected rate-limit error, got %v", err)
		}
		if !strings.Contains(err.Error(), "retry in 15s") {
			t.Fatalf("expected wait hint surfaced, got %q", err.Error())
		}
	})

	t.Run("Validation rejection maps to remote error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"error":{"message":"rack required","code":"validation"}}`)
		})

		err := client.SubmitAudit(context.Background(), submission)
		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("expected remote error, got %v", err)
		}
	})
}

func TestFetchAuditRecordsPagination(t *testing.T) {
	const total = 1100 // three pages at 500

	var pagesServed []int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		pagesServed = append(pagesServed, page)

		low := (page - 1) * pageSize
		high := low + pageSize
		if high > total {
			high = total
		}
		records := make([]models.AuditRecord, 0, high-low)
		for i := low; i < high; i++ {
			records = append(records, models.AuditRecord{ItemCode: fmt.Sprintf("X%04d", i)})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"records": records, "total": total})
	})

	records, err := client.FetchAuditRecords(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != total {
		t.Fatalf("expected %d records, got %d", total, len(records))
	}
	if len(pagesServed) != 3 {
		t.Fatalf("expected 3 page requests, got %v", pagesServed)
	}
	if records[0].ItemCode != "X0000" || records[total-1].ItemCode != "X1099" {
		t.Fatalf("records out of order: first %s last %s", records[0].ItemCode, records[total-1].ItemCode)
	}
}

func TestFetchAuditRecordsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"records": []models.AuditRecord{}, "total": 0})
	})

	records, err := client.FetchAuditRecords(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
