package timeline

import (
	"fmt"
	"strings"
)

// Category is what the user was doing during a slot.
type Category string

const (
	Unknown  Category = "unknown"
	Commute  Category = "commute"
	Food     Category = "food"
	Friends  Category = "friends"
	Work     Category = "work"
	Leisure  Category = "leisure"
	Family   Category = "family"
	Hobby    Category = "hobby"
	Shopping Category = "shopping"
	Sleep    Category = "sleep"
)

var categories = []Category{Unknown, Commute, Food, Friends, Work, Leisure, Family, Hobby, Shopping, Sleep}

// Categories returns every known category, Unknown first.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, k := range categories {
		if c == k {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return Unknown, nil
	}
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
