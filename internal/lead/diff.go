package lead

import (
	"encoding/json"

	"buyer-lead-service/internal/model"
)

// diffFields is the closed set of buyer fields that participate in history
// diffs. Extractors return the wire value for serialization-based comparison.
var diffFields = []struct {
	name string
	get  func(*model.Buyer) interface{}
}{
	{"fullName", func(b *model.Buyer) interface{} { return b.FullName }},
	{"email", func(b *model.Buyer) interface{} { return b.Email }},
	{"phone", func(b *model.Buyer) interface{} { return b.Phone }},
	{"city", func(b *model.Buyer) interface{} { return b.City }},
	{"propertyType", func(b *model.Buyer) interface{} { return b.PropertyType }},
	{"bhk", func(b *model.Buyer) interface{} { return b.BHK }},
	{"purpose", func(b *model.Buyer) interface{} { return b.Purpose }},
	{"budgetMin", func(b *model.Buyer) interface{} { return b.BudgetMin }},
	{"budgetMax", func(b *model.Buyer) interface{} { return b.BudgetMax }},
	{"timeline", func(b *model.Buyer) interface{} { return b.Timeline }},
	{"source", func(b *model.Buyer) interface{} { return b.Source }},
	{"status", func(b *model.Buyer) interface{} { return b.Status }},
	{"notes", func(b *model.Buyer) interface{} { return b.Notes }},
	{"tags", func(b *model.Buyer) interface{} { return []string(b.Tags) }},
}

// ComputeChanges builds the update diff: for every field the payload touched,
// the old and new values are compared in serialized form and unequal pairs
// recorded as {from, to}. Untouched fields are never compared. An empty
// result means the update was a no-op.
func ComputeChanges(old, updated *model.Buyer, touched map[string]bool) model.ChangeSet {
	changes := model.ChangeSet{}

	for _, field := range diffFields {
		if !touched[field.name] {
			continue
		}
		from := field.get(old)
		to := field.get(updated)
		if !jsonEqual(from, to) {
			changes[field.name] = model.FieldChange{From: from, To: to}
		}
	}

	return changes
}

// SnapshotChanges builds the created/imported diff: the accepted field set
// as {to} values with no from.
func SnapshotChanges(b *model.Buyer) model.ChangeSet {
	changes := model.ChangeSet{}

	for _, field := range diffFields {
		value := field.get(b)
		if isAbsent(value) {
			continue
		}
		changes[field.name] = model.FieldChange{To: value}
	}

	return changes
}

func isAbsent(value interface{}) bool {
	switch v := value.(type) {
	case *string:
		return v == nil
	case *int64:
		return v == nil
	case []string:
		return len(v) == 0
	}
	return false
}

// jsonEqual compares two values by their JSON serialization, mirroring how
// diffs are persisted
func jsonEqual(a, b interface{}) bool {
	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(aj) == string(bj)
}
