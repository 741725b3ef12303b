package ports

import (
	"lassoc/domain/dataset"
)

// FrameLoader reads observation data from an external source into a frame.
// Implementations exist for CSV and spreadsheet files.
type FrameLoader interface {
	Load() (*dataset.Frame, error)
}
