package model

import (
	"encoding/json"
	"fmt"
)

// Category is the closed set of item categories known to the ledger.
type Category uint8

// Known categories. The zero value is not a valid category.
const (
	CategoryMarketing Category = iota + 1
	CategoryDevelopment
	CategoryWriting
	CategoryBusiness
	CategoryEducation
	CategoryCreative
	CategoryOther
)

var categoryNames = [...]string{
	CategoryMarketing:   "Marketing",
	CategoryDevelopment: "Development",
	CategoryWriting:     "Writing",
	CategoryBusiness:    "Business",
	CategoryEducation:   "Education",
	CategoryCreative:    "Creative",
	CategoryOther:       "Other",
}

// Categories lists every valid category in ledger order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryNames)-1)
	for c := CategoryMarketing; c <= CategoryOther; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool { return c >= CategoryMarketing && c <= CategoryOther }

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a category name. Unknown names are an error, never a default.
func ParseCategory(name string) (Category, error) {
	for c := CategoryMarketing; c <= CategoryOther; c++ {
		if categoryNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// MarshalJSON encodes the category as a single-key variant object, e.g. {"Writing":null}.
func (c Category) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("marshal invalid category %d", uint8(c))
	}
	return json.Marshal(map[string]*struct{}{categoryNames[c]: nil})
}

// UnmarshalJSON decodes a single-key variant object and fails on anything else.
func (c *Category) UnmarshalJSON(b []byte) error {
	var variant map[string]json.RawMessage
	if err := json.Unmarshal(b, &variant); err != nil {
		return fmt.Errorf("category variant: %w", err)
	}
	if len(variant) != 1 {
		return fmt.Errorf("category variant: want exactly one key, got %d", len(variant))
	}
	for k := range variant {
		parsed, err := ParseCategory(k)
		if err != nil {
			return err
		}
		*c = parsed
	}
	return nil
}
