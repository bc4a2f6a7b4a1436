package models

import "time"

// PhotoSource tags where a piece of photographic evidence came from.
type PhotoSource string

const (
	PhotoSourceCamera   PhotoSource = "camera"
	PhotoSourceUpload   PhotoSource = "upload"
	PhotoSourceExisting PhotoSource = "existing"
)

// PhotoRecord carries the metadata of one evidence photo attached to an
// in-progress count. The binary upload itself is handled elsewhere.
type PhotoRecord struct {
	Key      string      `json:"key"`
	Source   PhotoSource `json:"source"`
	TakenAt  time.Time   `json:"taken_at"`
	FileName string      `json:"file_name,omitempty"`
}

// ConfirmedCount is the in-progress audit entry being edited: the resolved
// inventory record plus the operator-supplied figures. It is created when an
// item is resolved and discarded on submission.
type ConfirmedCount struct {
	Item            InventoryRecord        `json:"item"`
	CountedQuantity *float64               `json:"counted_quantity,omitempty"`
	RackLocation    string                 `json:"rack_location"`
	Photos          map[string]PhotoRecord `json:"photos,omitempty"`
}
