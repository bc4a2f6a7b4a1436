package inventory

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/retailops/stockaudit/internal/config"
	"github.com/retailops/stockaudit/internal/domain/models"
)

// LookupScope narrows an item lookup to the caller's own branch. A privileged
// caller looks up across all branches; an unprivileged one is pinned to
// BranchCode.
type LookupScope struct {
	Privileged bool
	BranchCode string
}

// Client exposes the inventory-service operations used by the agent.
type Client interface {
	LookupItem(ctx context.Context, code string, scope LookupScope) ([]models.InventoryRecord, error)
	SubmitAudit(ctx context.Context, submission models.AuditSubmission) error
	FetchAuditRecords(ctx context.Context) ([]models.AuditRecord, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds an inventory API client from the provided configuration.
func NewClient(cfg config.InventoryConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIToken)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &APIClient{httpClient: restyClient}
}

type lookupResponse struct {
	Items []models.InventoryRecord `json:"items"`
}

type recordsResponse struct {
	Records []models.AuditRecord `json:"records"`
	Total   int                  `json:"total"`
}

// apiError mirrors the inventory service's error payload.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Wait    string `json:"wait,omitempty"`
	} `json:"error"`
}

// LookupItem resolves a decoded code to zero or more branch-scoped records.
// Unprivileged lookups return at most one record, scoped to the caller's
// branch; privileged lookups may return one record per branch.
func (c *APIClient) LookupItem(ctx context.Context, code string, scope LookupScope) ([]models.InventoryRecord, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}

	result := new(lookupResponse)
	apiErr := new(apiError)

	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("code", code).
		SetResult(result).
		SetError(apiErr)
	if !scope.Privileged {
		req.SetQueryParam("branch_code", scope.BranchCode)
	}

	resp, err := req.Get("/items/lookup")
	if err != nil {
		return nil, &NetworkError{Op: "lookup item", Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		nf := &NotFoundError{Code: code}
		if !scope.Privileged {
			nf.BranchCode = scope.BranchCode
		}
		return nil, nf
	case resp.StatusCode() >= http.StatusBadRequest:
		return nil, remoteError("lookup item", resp.StatusCode(), apiErr)
	}

	return result.Items, nil
}

// SubmitAudit sends a confirmed count to the audit store. A 429-equivalent
// rejection is surfaced as *RateLimitError so the caller can wait and retry.
func (c *APIClient) SubmitAudit(ctx context.Context, submission models.AuditSubmission) error {
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(submission).
		SetError(apiErr).
		Post("/audits")
	if err != nil {
		return &NetworkError{Op: "submit audit", Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		msg := apiErr.Error.Message
		if apiErr.Error.Wait != "" {
			msg = apiErr.Error.Wait
		}
		return &RateLimitError{Message: msg}
	case resp.StatusCode() >= http.StatusBadRequest:
		return remoteError("submit audit", resp.StatusCode(), apiErr)
	}

	return nil
}

// FetchAuditRecords retrieves the full audit trail. The service paginates, so
// the client walks pages until the reported total is reached; filtering stays
// client-side.
func (c *APIClient) FetchAuditRecords(ctx context.Context) ([]models.AuditRecord, error) {
	const pageSize = 500

	var all []models.AuditRecord
	for page := 1; ; page++ {
		result := new(recordsResponse)
		apiErr := new(apiError)

		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetQueryParam("page", fmt.Sprint(page)).
			SetQueryParam("page_size", fmt.Sprint(pageSize)).
			SetResult(result).
			SetError(apiErr).
			Get("/audits")
		if err != nil {
			return nil, &NetworkError{Op: "fetch audit records", Err: err}
		}
		if resp.StatusCode() >= http.StatusBadRequest {
			return nil, remoteError("fetch audit records", resp.StatusCode(), apiErr)
		}

		all = append(all, result.Records...)
		if len(result.Records) < pageSize || (result.Total > 0 && len(all) >= result.Total) {
			return all, nil
		}
	}
}

func remoteError(op string, status int, apiErr *apiError) error {
	message := ""
	if apiErr != nil {
		message = apiErr.Error.Message
	}
	return &RemoteError{Op: op, Status: status, Message: message}
}
