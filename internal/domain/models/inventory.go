package models

// InventoryRecord describes one item as known by the inventory service for a
// single branch. Records are read-only from the agent's perspective.
type InventoryRecord struct {
	ItemCode       string  `json:"item_code"`
	ItemName       string  `json:"item_name"`
	SystemQuantity float64 `json:"system_quantity"`
	UnitPrice      float64 `json:"unit_price"`
	LocationName   string  `json:"location_name"`
	BranchCode     string  `json:"branch_code"`
	BranchName     string  `json:"branch_name"`

	// Last recorded audit values, when the item has been counted before.
	LastCountedQuantity *float64 `json:"last_counted_quantity,omitempty"`
	LastRackLocation    *string  `json:"last_rack_location,omitempty"`
}
