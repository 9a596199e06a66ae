package lead

import (
	"context"
	"strings"
	"testing"
	"time"

	"buyer-lead-service/internal/model"
	"buyer-lead-service/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Buyer{}, &model.BuyerHistory{}))

	return db
}

func seedUser(t *testing.T, db *gorm.DB, email, role string) model.User {
	t.Helper()

	user := model.User{Email: email, FullName: "Test User", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createBuyer(t *testing.T, svc *Service, actor Actor, mutate func(*CreateBuyerInput)) *model.Buyer {
	t.Helper()

	in := validCreateInput()
	if mutate != nil {
		mutate(in)
	}
	buyer, err := svc.Create(context.Background(), in, actor)
	require.NoError(t, err)
	return buyer
}

func TestServiceCreate(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	svc := NewService(db)

	buyer, err := svc.Create(context.Background(), validCreateInput(), Actor{ID: owner.ID, Role: owner.Role})
	require.NoError(t, err)

	assert.NotEmpty(t, buyer.ID)
	assert.Equal(t, "John Doe", buyer.FullName)
	assert.Equal(t, model.StatusNew, buyer.Status, "status defaults to NEW")
	assert.Equal(t, owner.ID, buyer.OwnerID)
	require.NotNil(t, buyer.Owner)
	assert.Equal(t, owner.Email, buyer.Owner.Email)
	assert.Equal(t, []string{}, []string(buyer.Tags))

	var history []model.BuyerHistory
	require.NoError(t, db.Where("buyer_id = ?", buyer.ID).Find(&history).Error)
	require.Len(t, history, 1)
	diff := history[0].Diff.Data()
	assert.Equal(t, model.ActionCreated, diff.Action)
	assert.Equal(t, owner.ID, history[0].ChangedBy)
	assert.Contains(t, diff.Changes, "fullName")
	assert.NotContains(t, diff.Changes, "email", "absent optionals are not snapshotted")
}

func TestServiceCreateNormalizesPhone(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	svc := NewService(db)

	buyer := createBuyer(t, svc, Actor{ID: owner.ID, Role: owner.Role}, func(in *CreateBuyerInput) {
		in.Phone = "+91 98765-43210"
	})
	assert.Equal(t, "919876543210", buyer.Phone)
}

func TestServiceCreateValidation(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	svc := NewService(db)

	in := validCreateInput()
	in.PropertyType = "APARTMENT" // no bhk supplied
	_, err := svc.Create(context.Background(), in, Actor{ID: owner.ID, Role: owner.Role})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	msgs := fieldMessages(apperror.FieldsOf(err))
	assert.Equal(t, msgBHKRequired, msgs["bhk"])

	var count int64
	require.NoError(t, db.Model(&model.Buyer{}).Count(&count).Error)
	assert.Zero(t, count, "invalid payload persists nothing")
}

func TestServiceGet(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	svc := NewService(db)
	created := createBuyer(t, svc, Actor{ID: owner.ID, Role: owner.Role}, nil)

	buyer, history, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, buyer.ID)
	require.NotNil(t, buyer.Owner)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].User)
	assert.Equal(t, owner.Email, history[0].User.Email)
}

func TestServiceGetNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	_, _, err := svc.Get(context.Background(), "0b27cbb4-0000-0000-0000-000000000000")
	assert.True(t, apperror.IsNotFound(err))
}

func TestServiceGetHistoryLimit(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)
	created := createBuyer(t, svc, actor, nil)

	notes := []string{"one", "two", "three", "four", "five", "six"}
	for _, n := range notes {
		note := n
		time.Sleep(2 * time.Millisecond)
		_, err := svc.Update(context.Background(), created.ID, &UpdateBuyerInput{Notes: &note}, actor)
		require.NoError(t, err)
	}

	_, history, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, history, 5, "history is capped at the five most recent entries")

	newest := history[0].Diff.Data()
	assert.Equal(t, model.ActionUpdated, newest.Action)
	assert.Equal(t, "six", newest.Changes["notes"].To)
}

func TestServiceUpdate(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)
	created := createBuyer(t, svc, actor, nil)

	status := model.StatusQualified
	updated, err := svc.Update(context.Background(), created.ID, &UpdateBuyerInput{
		Status:    &status,
		UpdatedAt: timePtr(created.UpdatedAt),
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQualified, updated.Status)

	var history []model.BuyerHistory
	require.NoError(t, db.Where("buyer_id = ?", created.ID).Order("changed_at DESC").Find(&history).Error)
	require.Len(t, history, 2)
	diff := history[0].Diff.Data()
	assert.Equal(t, model.ActionUpdated, diff.Action)
	require.Contains(t, diff.Changes, "status")
	assert.Equal(t, model.StatusNew, diff.Changes["status"].From)
	assert.Equal(t, model.StatusQualified, diff.Changes["status"].To)
	assert.Len(t, diff.Changes, 1, "untouched fields are not diffed")
}

func TestServiceUpdateNoop(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)
	created := createBuyer(t, svc, actor, nil)

	time.Sleep(5 * time.Millisecond)
	name := created.FullName
	updated, err := svc.Update(context.Background(), created.ID, &UpdateBuyerInput{FullName: &name}, actor)
	require.NoError(t, err)

	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt), "no-op update still advances updatedAt")

	var count int64
	require.NoError(t, db.Model(&model.BuyerHistory{}).Where("buyer_id = ?", created.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "no-op update writes no history")
}

func TestServiceUpdateConflict(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)
	created := createBuyer(t, svc, actor, nil)

	stale := created.UpdatedAt.Add(-time.Second)
	status := model.StatusDropped
	_, err := svc.Update(context.Background(), created.ID, &UpdateBuyerInput{
		Status:    &status,
		UpdatedAt: &stale,
	}, actor)
	assert.True(t, apperror.IsConflict(err))

	// A matching timestamp passes the check
	_, err = svc.Update(context.Background(), created.ID, &UpdateBuyerInput{
		Status:    &status,
		UpdatedAt: timePtr(created.UpdatedAt),
	}, actor)
	assert.NoError(t, err)
}

func TestServiceUpdateAuthorization(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	other := seedUser(t, db, "other@example.com", model.RoleUser)
	admin := seedUser(t, db, "admin@example.com", model.RoleAdmin)
	svc := NewService(db)
	created := createBuyer(t, svc, Actor{ID: owner.ID, Role: owner.Role}, nil)

	status := model.StatusContacted
	_, err := svc.Update(context.Background(), created.ID, &UpdateBuyerInput{Status: &status}, Actor{ID: other.ID, Role: other.Role})
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.Update(context.Background(), created.ID, &UpdateBuyerInput{Status: &status}, Actor{ID: admin.ID, Role: admin.Role})
	assert.NoError(t, err, "admins may update any record")
}

func TestServiceUpdateNotFound(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	svc := NewService(db)

	status := model.StatusContacted
	_, err := svc.Update(context.Background(), "0b27cbb4-0000-0000-0000-000000000000",
		&UpdateBuyerInput{Status: &status}, Actor{ID: owner.ID, Role: owner.Role})
	assert.True(t, apperror.IsNotFound(err))
}

func TestServiceUpdateMergedValidation(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)
	created := createBuyer(t, svc, actor, nil) // PLOT, no bhk

	propertyType := model.PropertyApartment
	_, err := svc.Update(context.Background(), created.ID, &UpdateBuyerInput{PropertyType: &propertyType}, actor)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	msgs := fieldMessages(apperror.FieldsOf(err))
	assert.Equal(t, msgBHKRequired, msgs["bhk"])
}

func TestServiceDelete(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	other := seedUser(t, db, "other@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)
	created := createBuyer(t, svc, actor, nil)

	err := svc.Delete(context.Background(), created.ID, Actor{ID: other.ID, Role: other.Role})
	assert.True(t, apperror.IsForbidden(err))

	require.NoError(t, svc.Delete(context.Background(), created.ID, actor))

	_, _, err = svc.Get(context.Background(), created.ID)
	assert.True(t, apperror.IsNotFound(err))

	var count int64
	require.NoError(t, db.Model(&model.BuyerHistory{}).Where("buyer_id = ?", created.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "history entries survive deletion")
}

func TestServiceList(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)

	createBuyer(t, svc, actor, func(in *CreateBuyerInput) {
		in.FullName = "Amit Verma"
		in.City = "MOHALI"
		in.Phone = "9000000001"
	})
	createBuyer(t, svc, actor, func(in *CreateBuyerInput) {
		in.FullName = "Priya Sharma"
		in.City = "CHANDIGARH"
		in.Phone = "9000000002"
		in.Status = model.StatusQualified
	})
	createBuyer(t, svc, actor, func(in *CreateBuyerInput) {
		in.FullName = "Rahul Gupta"
		in.City = "CHANDIGARH"
		in.Phone = "9000000003"
	})

	page, err := svc.List(context.Background(), ListFilters{City: "CHANDIGARH"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Buyers, 2)

	page, err = svc.List(context.Background(), ListFilters{Status: model.StatusQualified})
	require.NoError(t, err)
	require.Len(t, page.Buyers, 1)
	assert.Equal(t, "Priya Sharma", page.Buyers[0].FullName)

	// Search matches name case-insensitively and phone by substring
	page, err = svc.List(context.Background(), ListFilters{Search: "priya"})
	require.NoError(t, err)
	require.Len(t, page.Buyers, 1)

	page, err = svc.List(context.Background(), ListFilters{Search: "9000000003"})
	require.NoError(t, err)
	require.Len(t, page.Buyers, 1)
	assert.Equal(t, "Rahul Gupta", page.Buyers[0].FullName)
}

func TestServiceListPagination(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)

	for i := 0; i < 12; i++ {
		createBuyer(t, svc, actor, func(in *CreateBuyerInput) {
			in.Phone = "98765432" + string(rune('0'+i/10)) + string(rune('0'+i%10))
		})
	}

	page, err := svc.List(context.Background(), ListFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), page.Total)
	assert.Len(t, page.Buyers, 10, "default page size")
	assert.Equal(t, 1, page.PageNum)
	assert.Equal(t, 2, page.TotalPages)

	page, err = svc.List(context.Background(), ListFilters{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Buyers, 2)

	page, err = svc.List(context.Background(), ListFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, page.PageSize, "page size is capped")
}

func TestServiceListSort(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)

	for i, name := range []string{"Charlie Brown", "Alice Adams", "Bob Baker"} {
		n := name
		createBuyer(t, svc, actor, func(in *CreateBuyerInput) {
			in.FullName = n
			in.Phone = "987654321" + string(rune('0'+i))
		})
	}

	page, err := svc.List(context.Background(), ListFilters{SortBy: "fullName", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, page.Buyers, 3)
	assert.Equal(t, "Alice Adams", page.Buyers[0].FullName)
	assert.Equal(t, "Charlie Brown", page.Buyers[2].FullName)

	// Unknown sort keys fall back to updated_at and cannot inject SQL
	page, err = svc.List(context.Background(), ListFilters{SortBy: "id; DROP TABLE buyers"})
	require.NoError(t, err)
	assert.Len(t, page.Buyers, 3)
}

func TestServiceExport(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleUser)
	actor := Actor{ID: owner.ID, Role: owner.Role}
	svc := NewService(db)

	createBuyer(t, svc, actor, func(in *CreateBuyerInput) {
		in.FullName = "Priya Sharma"
		in.City = "MOHALI"
	})
	createBuyer(t, svc, actor, func(in *CreateBuyerInput) {
		in.FullName = "Amit Verma"
		in.Phone = "9000000001"
	})

	data, err := svc.Export(context.Background(), ListFilters{City: "MOHALI"})
	require.NoError(t, err)

	out := string(data)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2, "header plus one matching row")
	assert.Contains(t, lines[0], `"updatedAt"`)
	assert.Contains(t, lines[1], `"Priya Sharma"`)
}
