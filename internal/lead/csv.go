package lead

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"buyer-lead-service/internal/model"
)

// RawRow is one decoded CSV row, field name to raw cell text. Rows are
// positional: the column order below is the import contract, no header row.
type RawRow struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	City         string `json:"city"`
	PropertyType string `json:"propertyType"`
	BHK          string `json:"bhk"`
	Purpose      string `json:"purpose"`
	BudgetMin    string `json:"budgetMin"`
	BudgetMax    string `json:"budgetMax"`
	Timeline     string `json:"timeline"`
	Source       string `json:"source"`
	Notes        string `json:"notes"`
	Tags         string `json:"tags"`
	Status       string `json:"status"`
}

// csvColumns is the import column order; export appends updatedAt
var csvColumns = []string{
	"fullName", "email", "phone", "city", "propertyType",
	"bhk", "purpose", "budgetMin", "budgetMax", "timeline",
	"source", "notes", "tags", "status",
}

// DecodeRows parses CSV bytes into ordered raw rows. Every record is data;
// short records leave trailing fields empty, extra columns are dropped.
// A structurally malformed file fails the whole decode.
func DecodeRows(data []byte) ([]RawRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed CSV: %w", err)
	}

	rows := make([]RawRow, 0, len(records))
	for _, record := range records {
		cells := make([]string, len(csvColumns))
		copy(cells, record)
		rows = append(rows, RawRow{
			FullName:     cells[0],
			Email:        cells[1],
			Phone:        cells[2],
			City:         cells[3],
			PropertyType: cells[4],
			BHK:          cells[5],
			Purpose:      cells[6],
			BudgetMin:    cells[7],
			BudgetMax:    cells[8],
			Timeline:     cells[9],
			Source:       cells[10],
			Notes:        cells[11],
			Tags:         cells[12],
			Status:       cells[13],
		})
	}

	return rows, nil
}

// Encode serializes buyers to CSV text: one header row, then one row per
// record in the decode column order plus updatedAt. Every field is
// quote-wrapped with embedded quotes doubled; absent optionals render empty
// and tags join with ", ".
func Encode(buyers []model.Buyer) []byte {
	var b strings.Builder

	header := append(append([]string{}, csvColumns...), "updatedAt")
	writeRecord(&b, header)

	for _, buyer := range buyers {
		writeRecord(&b, []string{
			buyer.FullName,
			strValue(buyer.Email),
			buyer.Phone,
			buyer.City,
			buyer.PropertyType,
			strValue(buyer.BHK),
			buyer.Purpose,
			budgetValue(buyer.BudgetMin),
			budgetValue(buyer.BudgetMax),
			buyer.Timeline,
			buyer.Source,
			strValue(buyer.Notes),
			strings.Join(buyer.Tags, ", "),
			buyer.Status,
			buyer.UpdatedAt.Format(time.RFC3339),
		})
	}

	return []byte(b.String())
}

func writeRecord(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func budgetValue(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
