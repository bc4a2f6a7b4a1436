package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/retailops/stockaudit/internal/config"
	"github.com/retailops/stockaudit/internal/domain/models"
)

const monitoringRange = "Monitoring!A:F"

// Publisher pushes the daily monitoring summary to the supervisors' shared
// spreadsheet.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snapshot models.MonitoringSnapshot) error
}

// SummaryPublisher implements Publisher using the official Google Sheets API.
type SummaryPublisher struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewSummaryPublisher builds a Google Sheets backed publisher instance.
func NewSummaryPublisher(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*SummaryPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &SummaryPublisher{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// PublishSnapshot appends one row per branch to the monitoring range:
// date, branch code, branch name, distinct racks, total records.
func (p *SummaryPublisher) PublishSnapshot(ctx context.Context, snapshot models.MonitoringSnapshot) error {
	if len(snapshot.Branches) == 0 {
		return nil
	}

	date := snapshot.Date.Format("2006-01-02")
	values := make([][]interface{}, 0, len(snapshot.Branches))
	for _, branch := range snapshot.Branches {
		values = append(values, []interface{}{
			date,
			branch.BranchCode,
			branch.BranchName,
			branch.DistinctRacks,
			branch.TotalRecords,
		})
	}

	payload := &sheetsapi.ValueRange{Values: values}
	call := p.service.Spreadsheets.Values.Append(p.spreadsheetID, monitoringRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append monitoring rows: %w", err)
	}

	p.logger.Debug("monitoring snapshot published", zap.String("date", date), zap.Int("branches", len(snapshot.Branches)))
	return nil
}
