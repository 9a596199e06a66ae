package lead

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"buyer-lead-service/internal/model"
	"buyer-lead-service/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

// CreateBuyerInput is a fully-typed create payload. Field names in
// validation errors come from the json tags.
type CreateBuyerInput struct {
	FullName     string   `json:"fullName" validate:"required,min=2,max=80"`
	Email        *string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string   `json:"phone" validate:"required,phone"`
	City         string   `json:"city" validate:"required,oneof=CHANDIGARH MOHALI ZIRAKPUR PANCHKULA OTHER"`
	PropertyType string   `json:"propertyType" validate:"required,oneof=APARTMENT VILLA PLOT OFFICE RETAIL"`
	BHK          *string  `json:"bhk,omitempty" validate:"omitempty,oneof=STUDIO ONE TWO THREE FOUR"`
	Purpose      string   `json:"purpose" validate:"required,oneof=BUY RENT"`
	BudgetMin    *int64   `json:"budgetMin,omitempty" validate:"omitempty,gt=0"`
	BudgetMax    *int64   `json:"budgetMax,omitempty" validate:"omitempty,gt=0"`
	Timeline     string   `json:"timeline" validate:"required,oneof=ZERO_TO_THREE_MONTHS THREE_TO_SIX_MONTHS MORE_THAN_SIX_MONTHS EXPLORING"`
	Source       string   `json:"source" validate:"required,oneof=WEBSITE REFERRAL WALK_IN CALL OTHER"`
	Status       string   `json:"status,omitempty" validate:"omitempty,oneof=NEW QUALIFIED CONTACTED VISITED NEGOTIATION CONVERTED DROPPED"`
	Notes        *string  `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Tags         []string `json:"tags,omitempty"`
}

// UpdateBuyerInput is a partial update payload. Nil means "not supplied".
// UpdatedAt carries the caller's last-seen timestamp for the optimistic
// concurrency check; it is not a buyer field.
type UpdateBuyerInput struct {
	FullName     *string    `json:"fullName,omitempty" validate:"omitempty,min=2,max=80"`
	Email        *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string    `json:"phone,omitempty" validate:"omitempty,phone"`
	City         *string    `json:"city,omitempty" validate:"omitempty,oneof=CHANDIGARH MOHALI ZIRAKPUR PANCHKULA OTHER"`
	PropertyType *string    `json:"propertyType,omitempty" validate:"omitempty,oneof=APARTMENT VILLA PLOT OFFICE RETAIL"`
	BHK          *string    `json:"bhk,omitempty" validate:"omitempty,oneof=STUDIO ONE TWO THREE FOUR"`
	Purpose      *string    `json:"purpose,omitempty" validate:"omitempty,oneof=BUY RENT"`
	BudgetMin    *int64     `json:"budgetMin,omitempty" validate:"omitempty,gt=0"`
	BudgetMax    *int64     `json:"budgetMax,omitempty" validate:"omitempty,gt=0"`
	Timeline     *string    `json:"timeline,omitempty" validate:"omitempty,oneof=ZERO_TO_THREE_MONTHS THREE_TO_SIX_MONTHS MORE_THAN_SIX_MONTHS EXPLORING"`
	Source       *string    `json:"source,omitempty" validate:"omitempty,oneof=WEBSITE REFERRAL WALK_IN CALL OTHER"`
	Status       *string    `json:"status,omitempty" validate:"omitempty,oneof=NEW QUALIFIED CONTACTED VISITED NEGOTIATION CONVERTED DROPPED"`
	Notes        *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Tags         *[]string  `json:"tags,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their json name
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("phone", validatePhone)
}

// validatePhone accepts 10-15 digits after stripping every non-digit
func validatePhone(fl validator.FieldLevel) bool {
	digits := digitsOnly(fl.Field().String())
	return len(digits) >= 10 && len(digits) <= 15
}

// Human-readable messages, matching the wording surfaced to CSV importers
const (
	msgFullNameShort = "Full name must be at least 2 characters"
	msgFullNameLong  = "Full name must be less than 80 characters"
	msgEmail         = "Invalid email format"
	msgPhone         = "Phone must be 10-15 digits"
	msgCity          = "Invalid city. Must be one of: Chandigarh, Mohali, Zirakpur, Panchkula, Other"
	msgPropertyType  = "Invalid property type. Must be one of: Apartment, Villa, Plot, Office, Retail"
	msgBHK           = "Invalid BHK. Must be one of: Studio, 1, 2, 3, 4"
	msgBHKRequired   = "BHK is required for Apartment and Villa property types"
	msgPurpose       = "Invalid purpose. Must be one of: Buy, Rent"
	msgBudgetMin     = "Budget minimum must be a positive number"
	msgBudgetMax     = "Budget maximum must be a positive number"
	msgBudgetOrder   = "Budget maximum must be greater than or equal to budget minimum"
	msgTimeline      = "Invalid timeline. Must be one of: 0-3m, 3-6m, >6m, Exploring"
	msgSource        = "Invalid source. Must be one of: Website, Referral, Walk-in, Call, Other"
	msgStatus        = "Invalid status. Must be one of: New, Qualified, Contacted, Visited, Negotiation, Converted, Dropped"
	msgNotes         = "Notes must be less than 1000 characters"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// fieldMessage translates a validator failure into the message the API
// contract promises for that field
func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "fullName":
		if fe.Tag() == "max" {
			return msgFullNameLong
		}
		return msgFullNameShort
	case "email":
		return msgEmail
	case "phone":
		return msgPhone
	case "city":
		return msgCity
	case "propertyType":
		return msgPropertyType
	case "bhk":
		return msgBHK
	case "purpose":
		return msgPurpose
	case "budgetMin":
		return msgBudgetMin
	case "budgetMax":
		return msgBudgetMax
	case "timeline":
		return msgTimeline
	case "source":
		return msgSource
	case "status":
		return msgStatus
	case "notes":
		return msgNotes
	}
	return "Invalid value for " + fe.Field()
}

// runStructValidation collects every per-field failure; it never stops at
// the first one. The returned set records which fields failed so that
// cross-field checks can skip fields that are already invalid.
func runStructValidation(in interface{}) ([]apperror.FieldError, map[string]bool) {
	var errs []apperror.FieldError
	failed := make(map[string]bool)

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				failed[fe.Field()] = true
				errs = append(errs, apperror.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
			}
		} else {
			errs = append(errs, apperror.FieldError{Message: err.Error()})
		}
	}

	return errs, failed
}

// crossFieldErrors evaluates the BHK requirement and budget ordering over
// resolved values. Checks involving a field that already failed per-field
// validation are skipped.
func crossFieldErrors(failed map[string]bool, propertyType string, bhk *string, budgetMin, budgetMax *int64) []apperror.FieldError {
	var errs []apperror.FieldError

	if !failed["propertyType"] && !failed["bhk"] {
		if (propertyType == model.PropertyApartment || propertyType == model.PropertyVilla) && bhk == nil {
			errs = append(errs, apperror.FieldError{Field: "bhk", Message: msgBHKRequired})
		}
	}

	if !failed["budgetMin"] && !failed["budgetMax"] {
		if budgetMin != nil && budgetMax != nil && *budgetMax < *budgetMin {
			errs = append(errs, apperror.FieldError{Field: "budgetMax", Message: msgBudgetOrder})
		}
	}

	return errs
}

// ValidateCreate checks a create payload. It returns every accumulated
// field error; the payload is valid only when the result is empty.
func ValidateCreate(in *CreateBuyerInput) []apperror.FieldError {
	errs, failed := runStructValidation(in)
	errs = append(errs, crossFieldErrors(failed, in.PropertyType, in.BHK, in.BudgetMin, in.BudgetMax)...)
	return errs
}

// ValidateUpdate checks a partial update against the full post-merge record:
// cross-field rules see existing values overlaid with the supplied ones, so
// changing propertyType to APARTMENT without supplying bhk fails even when
// bhk is absent from the payload.
func ValidateUpdate(existing *model.Buyer, in *UpdateBuyerInput) []apperror.FieldError {
	errs, failed := runStructValidation(in)

	propertyType := existing.PropertyType
	if in.PropertyType != nil {
		propertyType = *in.PropertyType
	}
	bhk := existing.BHK
	if in.BHK != nil {
		bhk = in.BHK
	}
	budgetMin := existing.BudgetMin
	if in.BudgetMin != nil {
		budgetMin = in.BudgetMin
	}
	budgetMax := existing.BudgetMax
	if in.BudgetMax != nil {
		budgetMax = in.BudgetMax
	}

	errs = append(errs, crossFieldErrors(failed, propertyType, bhk, budgetMin, budgetMax)...)
	return errs
}

// ValidateRow normalizes and validates one raw CSV row. On success the
// returned input carries canonical enum values, a digits-only phone and
// parsed budgets; on failure every field error for the row is returned.
func ValidateRow(row RawRow) (*CreateBuyerInput, []apperror.FieldError) {
	var errs []apperror.FieldError
	failed := make(map[string]bool)
	in := &CreateBuyerInput{Tags: []string{}}

	fail := func(field, message string) {
		failed[field] = true
		errs = append(errs, apperror.FieldError{Field: field, Message: message})
	}

	name := strings.TrimSpace(row.FullName)
	switch {
	case len(name) < 2:
		fail("fullName", msgFullNameShort)
	case len(name) > 80:
		fail("fullName", msgFullNameLong)
	default:
		in.FullName = name
	}

	if email := strings.TrimSpace(row.Email); email != "" {
		if !emailRe.MatchString(email) {
			fail("email", msgEmail)
		} else {
			in.Email = &email
		}
	}

	if digits := digitsOnly(row.Phone); len(digits) < 10 || len(digits) > 15 {
		fail("phone", msgPhone)
	} else {
		in.Phone = digits
	}

	if city, ok := Normalize("city", row.City); ok {
		in.City = city
	} else {
		fail("city", msgCity)
	}

	if propertyType, ok := Normalize("propertyType", row.PropertyType); ok {
		in.PropertyType = propertyType
	} else {
		fail("propertyType", msgPropertyType)
	}

	if strings.TrimSpace(row.BHK) != "" {
		if bhk, ok := Normalize("bhk", row.BHK); ok {
			in.BHK = &bhk
		} else {
			fail("bhk", msgBHK)
		}
	}

	if purpose, ok := Normalize("purpose", row.Purpose); ok {
		in.Purpose = purpose
	} else {
		fail("purpose", msgPurpose)
	}

	if raw := strings.TrimSpace(row.BudgetMin); raw != "" {
		if n, err := strconv.ParseInt(digitsOnly(raw), 10, 64); err != nil || n <= 0 {
			fail("budgetMin", msgBudgetMin)
		} else {
			in.BudgetMin = &n
		}
	}

	if raw := strings.TrimSpace(row.BudgetMax); raw != "" {
		if n, err := strconv.ParseInt(digitsOnly(raw), 10, 64); err != nil || n <= 0 {
			fail("budgetMax", msgBudgetMax)
		} else {
			in.BudgetMax = &n
		}
	}

	if timeline, ok := Normalize("timeline", row.Timeline); ok {
		in.Timeline = timeline
	} else {
		fail("timeline", msgTimeline)
	}

	if source, ok := Normalize("source", row.Source); ok {
		in.Source = source
	} else {
		fail("source", msgSource)
	}

	if len(row.Notes) > 1000 {
		fail("notes", msgNotes)
	} else if notes := strings.TrimSpace(row.Notes); notes != "" {
		in.Notes = &notes
	}

	in.Tags = SplitTags(row.Tags)

	// A status cell is honored when present; empty defaults to NEW at create
	if strings.TrimSpace(row.Status) != "" {
		if status, ok := Normalize("status", row.Status); ok {
			in.Status = status
		} else {
			fail("status", msgStatus)
		}
	}

	errs = append(errs, crossFieldErrors(failed, in.PropertyType, in.BHK, in.BudgetMin, in.BudgetMax)...)

	if len(errs) > 0 {
		return nil, errs
	}
	return in, nil
}

// SplitTags parses a comma-separated tag cell: entries are trimmed and
// empty ones dropped
func SplitTags(raw string) []string {
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
