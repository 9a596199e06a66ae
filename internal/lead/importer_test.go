package lead

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"buyer-lead-service/internal/model"
	"buyer-lead-service/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importRow(name, phone string) string {
	return fmt.Sprintf("%s,,%s,chandigarh,plot,,buy,,,exploring,website,,,", name, phone)
}

func TestImport(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	importer := NewImporter(db, 0)

	data := strings.Join([]string{
		importRow("Amit Verma", "9000000001"),
		"Priya Sharma,priya@example.com,9000000002,mohali,apartment,2,rent,15000,25000,0-3m,referral,,urgent,qualified",
		importRow("Rahul Gupta", "9000000003"),
	}, "\n")

	result, err := importer.Import(context.Background(), []byte(data), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.SuccessCount)
	assert.Zero(t, result.ErrorCount)
	assert.Empty(t, result.Errors)

	var buyers []model.Buyer
	require.NoError(t, db.Order("full_name").Find(&buyers).Error)
	require.Len(t, buyers, 3)
	for _, b := range buyers {
		assert.Equal(t, owner.ID, b.OwnerID)
	}

	var priya model.Buyer
	require.NoError(t, db.First(&priya, "full_name = ?", "Priya Sharma").Error)
	assert.Equal(t, "QUALIFIED", priya.Status, "status cell is honored")
	assert.Equal(t, "MOHALI", priya.City)
	assert.Equal(t, []string{"urgent"}, []string(priya.Tags))

	var amit model.Buyer
	require.NoError(t, db.First(&amit, "full_name = ?", "Amit Verma").Error)
	assert.Equal(t, model.StatusNew, amit.Status, "empty status defaults to NEW")

	var history []model.BuyerHistory
	require.NoError(t, db.Find(&history).Error)
	require.Len(t, history, 3)
	for _, h := range history {
		assert.Equal(t, model.ActionImported, h.Diff.Data().Action)
		assert.Equal(t, owner.ID, h.ChangedBy)
	}
}

func TestImportPartial(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	importer := NewImporter(db, 0)

	data := strings.Join([]string{
		importRow("Row One", "9000000001"),
		importRow("Row Two", "9000000002"),
		"X,,123,nowhere,plot,,buy,,,exploring,website,,,",
		importRow("Row Four", "9000000004"),
		importRow("Row Five", "9000000005"),
	}, "\n")

	result, err := importer.Import(context.Background(), []byte(data), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount, "a row with several bad fields counts once")
	require.Len(t, result.Errors, 3)

	for _, re := range result.Errors {
		assert.Equal(t, 3, re.Row, "row numbers are 1-based")
		assert.Equal(t, "X", re.Data.FullName)
	}
	fields := make(map[string]string)
	for _, re := range result.Errors {
		fields[re.Field] = re.Message
	}
	assert.Equal(t, msgFullNameShort, fields["fullName"])
	assert.Equal(t, msgPhone, fields["phone"])
	assert.Equal(t, msgCity, fields["city"])

	var count int64
	require.NoError(t, db.Model(&model.Buyer{}).Count(&count).Error)
	assert.Equal(t, int64(4), count, "the valid subset is persisted")
}

func TestImportAllInvalid(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	importer := NewImporter(db, 0)

	result, err := importer.Import(context.Background(), []byte("X,,123,nowhere,plot,,buy,,,exploring,website,,,\n"), owner.ID)
	require.NoError(t, err)
	assert.Zero(t, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)

	var count int64
	require.NoError(t, db.Model(&model.Buyer{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportRowLimit(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	importer := NewImporter(db, 0)

	rows := make([]string, DefaultMaxImportRows+1)
	for i := range rows {
		rows[i] = importRow(fmt.Sprintf("Person %03d", i), "9000000001")
	}

	_, err := importer.Import(context.Background(), []byte(strings.Join(rows, "\n")), owner.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeRowLimit, apperror.CodeOf(err))

	var count int64
	require.NoError(t, db.Model(&model.Buyer{}).Count(&count).Error)
	assert.Zero(t, count, "an oversized file imports nothing")
}

func TestImportAtRowLimit(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	importer := NewImporter(db, 5)

	rows := make([]string, 5)
	for i := range rows {
		rows[i] = importRow(fmt.Sprintf("Person %d", i), "9000000001")
	}

	result, err := importer.Import(context.Background(), []byte(strings.Join(rows, "\n")), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, result.SuccessCount)
}

func TestImportBadCSV(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	importer := NewImporter(db, 0)

	_, err := importer.Import(context.Background(), []byte("John \"Doe,,9876543210\n"), owner.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeBadCSV, apperror.CodeOf(err))
}

func TestImportEmptyFile(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	importer := NewImporter(db, 0)

	result, err := importer.Import(context.Background(), []byte(""), owner.ID)
	require.NoError(t, err)
	assert.Zero(t, result.SuccessCount)
	assert.Zero(t, result.ErrorCount)
	assert.Empty(t, result.Errors)
}
