package types

// FieldKind identifies which part of a finding an editor action targets
type FieldKind int

const (
	FieldDescription FieldKind = iota
	FieldCustom
)

// FieldTarget addresses either the description or one custom field by id
type FieldTarget struct {
	Kind FieldKind
	ID   string
}

// DescriptionTarget targets the finding description
func DescriptionTarget() FieldTarget {
	return FieldTarget{Kind: FieldDescription}
}

// CustomFieldTarget targets the custom field with the given id
func CustomFieldTarget(id string) FieldTarget {
	return FieldTarget{Kind: FieldCustom, ID: id}
}

// Lookup returns the rich-text value addressed by target
func (f *Finding) Lookup(target FieldTarget) (string, bool) {
	switch target.Kind {
	case FieldDescription:
		return f.Description, true
	case FieldCustom:
		for _, cf := range f.CustomFields {
			if cf.ID == target.ID {
				return cf.Value, true
			}
		}
	}
	return "", false
}

// Update replaces the rich-text value addressed by target.
// It returns false when the target does not exist.
func (f *Finding) Update(target FieldTarget, value string) bool {
	switch target.Kind {
	case FieldDescription:
		f.Description = value
		return true
	case FieldCustom:
		for i := range f.CustomFields {
			if f.CustomFields[i].ID == target.ID {
				f.CustomFields[i].Value = value
				return true
			}
		}
	}
	return false
}

// MoveCustomField returns a new slice with the field at from moved to index to.
// Out of range indexes return an unmodified copy.
func MoveCustomField(fields []CustomField, from, to int) []CustomField {
	out := make([]CustomField, len(fields))
	copy(out, fields)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}

	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]CustomField{moved}, out[to:]...)...)
	return out
}
