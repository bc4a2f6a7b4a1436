package models

import "time"

// AuditSubmission is the immutable payload sent to the audit store once a
// count has been confirmed. It is never mutated after construction.
type AuditSubmission struct {
	ItemCode        string  `json:"item_code"`
	ItemName        string  `json:"item_name"`
	SystemQuantity  float64 `json:"system_quantity"`
	UnitPrice       float64 `json:"unit_price"`
	CountedQuantity float64 `json:"counted_quantity"`
	Variance        float64 `json:"variance"`
	LocationName    string  `json:"location_name"`
	BranchCode      string  `json:"branch_code"`
	RackLocation    string  `json:"rack_location"`
}

// Operator identifies the field staff member that submitted a record.
type Operator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// AuditRecord is the persisted audit-trail row read back from the audit store
// for reporting. The reporting engine only filters and groups, never mutates.
type AuditRecord struct {
	ItemCode        string    `json:"item_code"`
	ItemName        string    `json:"item_name"`
	SystemQuantity  float64   `json:"system_quantity"`
	UnitPrice       float64   `json:"unit_price"`
	CountedQuantity float64   `json:"counted_quantity"`
	Variance        float64   `json:"variance"`
	LocationName    string    `json:"location_name"`
	BranchCode      string    `json:"branch_code"`
	BranchName      string    `json:"branch_name"`
	RackLocation    string    `json:"rack_location"`
	Operator        *Operator `json:"operator,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// JournalEntry is one row of the agent's local submission journal.
type JournalEntry struct {
	At              time.Time `bson:"at" json:"at"`
	ItemCode        string    `bson:"item_code" json:"item_code"`
	BranchCode      string    `bson:"branch_code" json:"branch_code"`
	RackLocation    string    `bson:"rack_location" json:"rack_location"`
	CountedQuantity float64   `bson:"counted_quantity" json:"counted_quantity"`
	Variance        float64   `bson:"variance" json:"variance"`
	Outcome         string    `bson:"outcome" json:"outcome"`
}

// BranchRackCount aggregates the distinct rack locations ever counted for one
// branch, together with the branch's total record count.
type BranchRackCount struct {
	BranchCode    string `bson:"branch_code" json:"branch_code"`
	BranchName    string `bson:"branch_name" json:"branch_name"`
	DistinctRacks int    `bson:"distinct_racks" json:"distinct_racks"`
	TotalRecords  int    `bson:"total_records" json:"total_records"`
}

// MonitoringSnapshot is the daily per-branch monitoring summary persisted by
// the scheduler after each refresh cycle.
type MonitoringSnapshot struct {
	Date      time.Time         `bson:"date" json:"date"`
	Branches  []BranchRackCount `bson:"branches" json:"branches"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}
