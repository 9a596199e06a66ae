package lead

import (
	"context"
	"fmt"

	"buyer-lead-service/internal/model"
	"buyer-lead-service/pkg/apperror"

	"gorm.io/gorm"
)

// DefaultMaxImportRows caps the number of data rows in one import file
const DefaultMaxImportRows = 200

// RowError is one validation failure for one import row, echoing the raw
// row so callers can show what was rejected
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Data    RawRow `json:"data"`
}

// ImportResult reports the outcome of a bulk import. Partial success is a
// normal outcome: counts plus per-row errors, not an error value.
type ImportResult struct {
	SuccessCount int        `json:"successCount"`
	ErrorCount   int        `json:"errorCount"`
	Errors       []RowError `json:"errors"`
}

// Importer runs the CSV bulk import pipeline
type Importer struct {
	db      *gorm.DB
	maxRows int
}

// NewImporter creates an importer. maxRows <= 0 selects the default cap.
func NewImporter(db *gorm.DB, maxRows int) *Importer {
	if maxRows <= 0 {
		maxRows = DefaultMaxImportRows
	}
	return &Importer{db: db, maxRows: maxRows}
}

// Import decodes CSV bytes, validates every row in order and persists the
// valid subset as one atomic batch owned by the acting user, each insert
// paired with an "imported" history entry. Codec failures and the row cap
// abort the whole import before any row work; row validation failures only
// exclude their row.
func (im *Importer) Import(ctx context.Context, data []byte, actingUserID string) (*ImportResult, error) {
	rows, err := DecodeRows(data)
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrCodeBadCSV, "failed to parse CSV file", err)
	}

	if len(rows) > im.maxRows {
		return nil, apperror.New(apperror.ErrCodeRowLimit,
			fmt.Sprintf("CSV file cannot contain more than %d rows", im.maxRows))
	}

	result := &ImportResult{Errors: []RowError{}}
	var valid []*model.Buyer

	for i, row := range rows {
		input, ferrs := ValidateRow(row)
		if len(ferrs) == 0 {
			valid = append(valid, buyerFromInput(input, actingUserID))
			continue
		}

		result.ErrorCount++
		for _, ferr := range ferrs {
			result.Errors = append(result.Errors, RowError{
				Row:     i + 1,
				Field:   ferr.Field,
				Message: ferr.Message,
				Data:    row,
			})
		}
	}

	// All-or-nothing for the valid subset: any insert failure rolls back
	// the whole batch.
	if len(valid) > 0 {
		err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, buyer := range valid {
				if err := tx.Create(buyer).Error; err != nil {
					return err
				}
				if err := tx.Create(newHistory(buyer, actingUserID, model.ActionImported)).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, apperror.Wrap(apperror.ErrCodeInternalError, "failed to persist imported buyers", err)
		}
		result.SuccessCount = len(valid)
	}

	return result, nil
}
