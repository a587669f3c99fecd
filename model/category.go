package model

import (
	"strings"

	"github.com/jacentio/todo/store"
)

// Category groups tasks.
type Category struct {
	UserID       string `json:"userId" dynamodbav:"userId"`
	CategoryID   string `json:"categoryId" dynamodbav:"categoryId"`
	CategoryName string `json:"categoryName" dynamodbav:"categoryName"`
	Timestamps
}

// CategoryInput holds the fields of a new category.
type CategoryInput struct {
	CategoryName string `json:"categoryName"`
}

func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.CategoryName) == "" {
		return Invalid("categoryName", "is required")
	}
	return nil
}

// CategoryPatch is a sparse category update.
type CategoryPatch struct {
	CategoryName *string `json:"categoryName"`
}

func (p CategoryPatch) Validate() error {
	if p.CategoryName == nil {
		return Invalid("", "no fields to update")
	}
	if strings.TrimSpace(*p.CategoryName) == "" {
		return Invalid("categoryName", "must not be empty")
	}
	return nil
}

func (p CategoryPatch) Changes() []store.Change {
	if p.CategoryName == nil {
		return nil
	}
	return []store.Change{{Name: "categoryName", Value: *p.CategoryName}}
}
