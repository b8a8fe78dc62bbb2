package database

import (
	"fmt"
	"time"
)

// AssetRecord is a stored image entry: the uploaded original, the optional
// background-removed derivative supplied later by the removal step, and the
// export choices last applied to it.
type AssetRecord struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Original   []byte    `db:"original"`  // source image bytes, stored as binary
	Processed  []byte    `db:"processed"` // background-removed derivative, nil until available
	LastPreset string    `db:"last_preset"`
	LastFormat string    `db:"last_format"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// SaveRequest carries the fields of a save call. Name is the dedup key;
// a request whose Name matches an existing record merges into it instead of
// inserting a duplicate. Optional fields left at their zero value keep
// whatever the record already holds.
type SaveRequest struct {
	Name       string
	Original   []byte
	Processed  []byte
	LastPreset string
	LastFormat string
}

// StorageSummary is the aggregate view handed to the UI layer.
type StorageSummary struct {
	Count         int    `json:"count"`
	TotalBytes    int64  `json:"totalBytes"`
	HumanReadable string `json:"humanReadableSize"`
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// humanReadableSize formats a byte count using base-1024 units with two
// decimal places, e.g. "1.50 MB".
func humanReadableSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", size, sizeUnits[unit])
}
