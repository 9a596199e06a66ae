package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"buyer-lead-service/internal/model"
	"buyer-lead-service/pkg/apperror"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor identifies the user performing an operation, as established by the
// identity layer. The service trusts it and only enforces ownership rules.
type Actor struct {
	ID   string
	Role string
}

// ListFilters selects and orders buyers for List and Export
type ListFilters struct {
	City         string
	PropertyType string
	Status       string
	Timeline     string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// Page is one page of buyers plus pagination totals
type Page struct {
	Buyers     []model.Buyer `json:"data"`
	Total      int64         `json:"total"`
	PageNum    int           `json:"page"`
	PageSize   int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
}

const (
	defaultPageSize = 10
	maxPageSize     = 50
	historyLimit    = 5
)

// sortColumns whitelists sortable fields, wire name to column
var sortColumns = map[string]string{
	"updatedAt":    "updated_at",
	"createdAt":    "created_at",
	"fullName":     "full_name",
	"city":         "city",
	"status":       "status",
	"propertyType": "property_type",
	"timeline":     "timeline",
}

// Service exposes buyer record operations over the persistence store
type Service struct {
	db *gorm.DB
}

// NewService creates a buyer record service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create validates the payload, persists the buyer owned by the actor and
// writes a "created" history entry in the same transaction.
func (s *Service) Create(ctx context.Context, in *CreateBuyerInput, actor Actor) (*model.Buyer, error) {
	if errs := ValidateCreate(in); len(errs) > 0 {
		return nil, apperror.Validation(errs)
	}

	buyer := buyerFromInput(in, actor.ID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(buyer).Error; err != nil {
			return err
		}
		return tx.Create(newHistory(buyer, actor.ID, model.ActionCreated)).Error
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrCodeInternalError, "failed to create buyer", err)
	}

	return s.reload(ctx, buyer.ID)
}

// Get returns a buyer with its owner display fields and the most recent
// history entries, newest first.
func (s *Service) Get(ctx context.Context, id string) (*model.Buyer, []model.BuyerHistory, error) {
	var buyer model.Buyer
	if err := s.db.WithContext(ctx).Preload("Owner").First(&buyer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperror.New(apperror.ErrCodeNotFound, "Buyer not found")
		}
		return nil, nil, apperror.Wrap(apperror.ErrCodeInternalError, "failed to load buyer", err)
	}

	var history []model.BuyerHistory
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("buyer_id = ?", id).
		Order("changed_at DESC").
		Limit(historyLimit).
		Find(&history).Error
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.ErrCodeInternalError, "failed to load history", err)
	}

	return &buyer, history, nil
}

// Update applies a partial update: authorization, optimistic-concurrency
// check, merged-view validation, persist and change tracking run inside one
// transaction and the first failure short-circuits the rest. A payload that
// changes nothing writes no history entry but still advances updatedAt.
func (s *Service) Update(ctx context.Context, id string, in *UpdateBuyerInput, actor Actor) (*model.Buyer, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Buyer
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.New(apperror.ErrCodeNotFound, "Buyer not found")
			}
			return err
		}

		if existing.OwnerID != actor.ID && actor.Role != model.RoleAdmin {
			return apperror.New(apperror.ErrCodeForbidden, "Permission denied")
		}

		if in.UpdatedAt != nil && in.UpdatedAt.Before(existing.UpdatedAt) {
			return apperror.New(apperror.ErrCodeConflict,
				"Record has been modified by another user. Please refresh and try again.")
		}

		if errs := ValidateUpdate(&existing, in); len(errs) > 0 {
			return apperror.Validation(errs)
		}

		updated, touched := applyUpdate(existing, in)
		changes := ComputeChanges(&existing, &updated, touched)

		if err := tx.Save(&updated).Error; err != nil {
			return err
		}

		if len(changes) > 0 {
			entry := &model.BuyerHistory{
				BuyerID:   updated.ID,
				ChangedBy: actor.ID,
				Diff:      datatypes.NewJSONType(model.BuyerDiff{Action: model.ActionUpdated, Changes: changes}),
			}
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.Wrap(apperror.ErrCodeInternalError, "failed to update buyer", err)
	}

	return s.reload(ctx, id)
}

// Delete removes the buyer row outright. History entries are retained for
// audit.
func (s *Service) Delete(ctx context.Context, id string, actor Actor) error {
	var buyer model.Buyer
	if err := s.db.WithContext(ctx).First(&buyer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "Buyer not found")
		}
		return apperror.Wrap(apperror.ErrCodeInternalError, "failed to load buyer", err)
	}

	if buyer.OwnerID != actor.ID && actor.Role != model.RoleAdmin {
		return apperror.New(apperror.ErrCodeForbidden, "Permission denied")
	}

	if err := s.db.WithContext(ctx).Delete(&buyer).Error; err != nil {
		return apperror.Wrap(apperror.ErrCodeInternalError, "failed to delete buyer", err)
	}

	return nil
}

// List returns one page of buyers matching the filters plus totals
func (s *Service) List(ctx context.Context, f ListFilters) (*Page, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, apperror.Wrap(apperror.ErrCodeInternalError, "failed to count buyers", err)
	}

	var buyers []model.Buyer
	err := s.filtered(ctx, f).
		Preload("Owner").
		Order(orderClause(f)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&buyers).Error
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrCodeInternalError, "failed to list buyers", err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &Page{
		Buyers:     buyers,
		Total:      total,
		PageNum:    page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Export serializes every buyer matching the filters to CSV bytes
func (s *Service) Export(ctx context.Context, f ListFilters) ([]byte, error) {
	var buyers []model.Buyer
	err := s.filtered(ctx, f).Order(orderClause(f)).Find(&buyers).Error
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrCodeInternalError, "failed to export buyers", err)
	}

	return Encode(buyers), nil
}

// filtered builds the shared WHERE clause for List and Export
func (s *Service) filtered(ctx context.Context, f ListFilters) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&model.Buyer{})

	if f.City != "" {
		query = query.Where("city = ?", f.City)
	}
	if f.PropertyType != "" {
		query = query.Where("property_type = ?", f.PropertyType)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Timeline != "" {
		query = query.Where("timeline = ?", f.Timeline)
	}
	if f.Search != "" {
		needle := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where(
			"LOWER(full_name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?",
			needle, "%"+f.Search+"%", needle,
		)
	}

	return query
}

func orderClause(f ListFilters) string {
	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "updated_at"
	}
	direction := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		direction = "ASC"
	}
	return fmt.Sprintf("%s %s", column, direction)
}

// reload fetches a buyer with owner display fields after a mutation
func (s *Service) reload(ctx context.Context, id string) (*model.Buyer, error) {
	var buyer model.Buyer
	if err := s.db.WithContext(ctx).Preload("Owner").First(&buyer, "id = ?", id).Error; err != nil {
		return nil, apperror.Wrap(apperror.ErrCodeInternalError, "failed to load buyer", err)
	}
	return &buyer, nil
}

// buyerFromInput builds the persisted record from a validated payload
func buyerFromInput(in *CreateBuyerInput, ownerID string) *model.Buyer {
	status := in.Status
	if status == "" {
		status = model.StatusNew
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	return &model.Buyer{
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        digitsOnly(in.Phone),
		City:         in.City,
		PropertyType: in.PropertyType,
		BHK:          in.BHK,
		Purpose:      in.Purpose,
		BudgetMin:    in.BudgetMin,
		BudgetMax:    in.BudgetMax,
		Timeline:     in.Timeline,
		Source:       in.Source,
		Status:       status,
		Notes:        in.Notes,
		Tags:         tags,
		OwnerID:      ownerID,
	}
}

// newHistory builds a full-snapshot history entry for create/import
func newHistory(buyer *model.Buyer, actorID, action string) *model.BuyerHistory {
	return &model.BuyerHistory{
		BuyerID:   buyer.ID,
		ChangedBy: actorID,
		Diff:      datatypes.NewJSONType(model.BuyerDiff{Action: action, Changes: SnapshotChanges(buyer)}),
	}
}

// applyUpdate overlays supplied fields on a copy of the record and reports
// which fields the payload touched
func applyUpdate(existing model.Buyer, in *UpdateBuyerInput) (model.Buyer, map[string]bool) {
	updated := existing
	touched := make(map[string]bool)

	if in.FullName != nil {
		updated.FullName = *in.FullName
		touched["fullName"] = true
	}
	if in.Email != nil {
		updated.Email = in.Email
		touched["email"] = true
	}
	if in.Phone != nil {
		updated.Phone = digitsOnly(*in.Phone)
		touched["phone"] = true
	}
	if in.City != nil {
		updated.City = *in.City
		touched["city"] = true
	}
	if in.PropertyType != nil {
		updated.PropertyType = *in.PropertyType
		touched["propertyType"] = true
	}
	if in.BHK != nil {
		updated.BHK = in.BHK
		touched["bhk"] = true
	}
	if in.Purpose != nil {
		updated.Purpose = *in.Purpose
		touched["purpose"] = true
	}
	if in.BudgetMin != nil {
		updated.BudgetMin = in.BudgetMin
		touched["budgetMin"] = true
	}
	if in.BudgetMax != nil {
		updated.BudgetMax = in.BudgetMax
		touched["budgetMax"] = true
	}
	if in.Timeline != nil {
		updated.Timeline = *in.Timeline
		touched["timeline"] = true
	}
	if in.Source != nil {
		updated.Source = *in.Source
		touched["source"] = true
	}
	if in.Status != nil {
		updated.Status = *in.Status
		touched["status"] = true
	}
	if in.Notes != nil {
		updated.Notes = in.Notes
		touched["notes"] = true
	}
	if in.Tags != nil {
		updated.Tags = *in.Tags
		touched["tags"] = true
	}

	return updated, touched
}
