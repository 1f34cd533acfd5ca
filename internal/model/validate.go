package model

import (
	"fmt"
	"strings"
)

// Limits enforced by the ledger; checked client-side before any remote call.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
	MaxContentLen     = 10000
	MaxTags           = 10
	MaxTagLen         = 30
	MaxDisplayNameLen = 50
)

// Validate checks a create request against ledger limits.
func (r CreateItem) Validate() error {
	if err := validateTitle(r.Title); err != nil {
		return err
	}
	if len(r.Description) > MaxDescriptionLen {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLen)
	}
	if err := validateContent(r.Content); err != nil {
		return err
	}
	if !r.Category.Valid() {
		return fmt.Errorf("invalid category %d", uint8(r.Category))
	}
	return validateTags(r.Tags)
}

// Validate checks the fields an update actually sets.
func (u UpdateItem) Validate() error {
	if u.ID == 0 {
		return fmt.Errorf("empty item id")
	}
	if u.IsEmpty() {
		return fmt.Errorf("nothing to update")
	}
	if u.Title != nil {
		if err := validateTitle(*u.Title); err != nil {
			return err
		}
	}
	if u.Description != nil && len(*u.Description) > MaxDescriptionLen {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLen)
	}
	if u.Content != nil {
		if err := validateContent(*u.Content); err != nil {
			return err
		}
	}
	if u.Category != nil && !u.Category.Valid() {
		return fmt.Errorf("invalid category %d", uint8(*u.Category))
	}
	return validateTags(u.Tags)
}

// ValidateDisplayName checks a display name the way the ledger does.
func ValidateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" || len(name) > MaxDisplayNameLen {
		return fmt.Errorf("display name must be between 1 and %d characters", MaxDisplayNameLen)
	}
	return nil
}

func validateTitle(t string) error {
	if strings.TrimSpace(t) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if len(t) > MaxTitleLen {
		return fmt.Errorf("title cannot exceed %d characters", MaxTitleLen)
	}
	return nil
}

func validateContent(c string) error {
	if strings.TrimSpace(c) == "" {
		return fmt.Errorf("content cannot be empty")
	}
	if len(c) > MaxContentLen {
		return fmt.Errorf("content cannot exceed %d characters", MaxContentLen)
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("cannot have more than %d tags", MaxTags)
	}
	for _, t := range tags {
		if len(t) > MaxTagLen {
			return fmt.Errorf("tag cannot exceed %d characters", MaxTagLen)
		}
	}
	return nil
}
