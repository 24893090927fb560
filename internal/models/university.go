package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PlaceholderImageURL is shown for universities without an image
const PlaceholderImageURL = "https://via.placeholder.com/400x200?text=University"

// UniversityID identifies a university. The catalog provider may send it
// as a JSON string or number; it is written back in the same form.
type UniversityID struct {
	value   string
	numeric bool
}

// NewUniversityID builds a string-form identifier
func NewUniversityID(v string) UniversityID {
	return UniversityID{value: v}
}

// NumericUniversityID builds a numeric-form identifier
func NumericUniversityID(v int64) UniversityID {
	return UniversityID{value: strconv.FormatInt(v, 10), numeric: true}
}

// String returns the identifier text
func (id UniversityID) String() string {
	return id.value
}

// IsZero reports whether the identifier is empty
func (id UniversityID) IsZero() bool {
	return id.value == ""
}

// Matches compares identifiers by value, ignoring wire form
func (id UniversityID) Matches(other UniversityID) bool {
	return id.value == other.value
}

// MarshalJSON writes the identifier in its original form
func (id UniversityID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts a string or a number
func (id *UniversityID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = UniversityID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UniversityID{value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("university id must be a string or number: %w", err)
	}
	*id = UniversityID{value: n.String(), numeric: true}
	return nil
}

// Number is a decimal that accepts a JSON number or a numeric string
type Number float64

// Float64 returns the value as float64
func (n Number) Float64() float64 {
	return float64(n)
}

// UnmarshalJSON accepts 3.5, "3.5" and "3.50". Empty strings and null are 0.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// University is a catalog record supplied by the catalog provider
type University struct {
	ID          UniversityID `json:"id" yaml:"-"`
	Name        string       `json:"name" yaml:"name"`
	Country     string       `json:"country" yaml:"country"`
	DegreeLevel string       `json:"degree_level" yaml:"degree_level"`
	MinGPA      Number       `json:"min_gpa" yaml:"min_gpa"`
	MinIELTS    Number       `json:"min_ielts" yaml:"min_ielts"`
	Tuition     Number       `json:"tuition" yaml:"tuition"`
	ImageURL    string       `json:"image_url,omitempty" yaml:"image_url"`
}

// ImageOrPlaceholder returns the image URL or the placeholder when absent
func (u *University) ImageOrPlaceholder() string {
	if strings.TrimSpace(u.ImageURL) == "" {
		return PlaceholderImageURL
	}
	return u.ImageURL
}

// CatalogQuery holds catalog filters. Empty fields mean no constraint.
type CatalogQuery struct {
	MaxFee  string `json:"maxFee,omitempty"`
	Country string `json:"country,omitempty"`
	Degree  string `json:"degree,omitempty"`
}

// Listing is a catalog row enriched with derived per-session state
type Listing struct {
	University University `json:"university"`
	ImageURL   string     `json:"image_url"`
	Eligible   bool       `json:"eligible"`
	Selected   bool       `json:"selected"`
}
