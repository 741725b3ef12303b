package excel

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"lassoc/domain/dataset"
	"lassoc/internal"
	"lassoc/internal/errors"
	"lassoc/ports"
)

var logger = internal.NewLogger("DataReader")

// DataReader loads categorical observation data from Excel or CSV files into
// a frame. Cells are taken as raw labels; numeric columns go through the
// discretizer before analysis.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

var _ ports.FrameLoader = (*DataReader)(nil)

// NewDataReader creates a reader for the given file, dispatching on extension.
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// Load reads the file into a frame.
func (r *DataReader) Load() (*dataset.Frame, error) {
	logger.Info("reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.DataInvalidf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, errors.DataInvalidf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, errors.DataInvalid("file must have a header row and at least one data row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	records := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make([]string, len(header))
		for i := range rec {
			if i < len(row) {
				rec[i] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, rec)
	}

	frame, err := dataset.FrameFromRecords(header, records)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded %d columns, %d rows", len(header), frame.Rows())
	return frame, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.DataInvalidf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.DataInvalidf("failed to read sheet %s: %v", sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.DataInvalidf("failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // ragged rows are padded during frame assembly
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.DataInvalidf("failed to parse CSV file: %v", err)
	}
	return rows, nil
}
