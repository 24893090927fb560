package eligibility

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/terra-clan/campus-gateway/internal/models"
)

// ComparisonColumn heads one university column of the comparison table
type ComparisonColumn struct {
	ID      models.UniversityID `json:"id"`
	Name    string              `json:"name"`
	Country string              `json:"country"`
}

// ComparisonRow is one feature compared across the selection
type ComparisonRow struct {
	Feature string   `json:"feature"`
	Values  []string `json:"values"`
}

// ComparisonTable is the side-by-side view of the selection
type ComparisonTable struct {
	Count   int                `json:"count"`
	Columns []ComparisonColumn `json:"columns"`
	Rows    []ComparisonRow    `json:"rows"`
}

// BuildComparison lays out GPA, IELTS and tuition for each selected university
func BuildComparison(selection []models.University) ComparisonTable {
	table := ComparisonTable{
		Count:   len(selection),
		Columns: make([]ComparisonColumn, 0, len(selection)),
		Rows: []ComparisonRow{
			{Feature: "GPA Requirement"},
			{Feature: "IELTS Requirement"},
			{Feature: "Annual Tuition"},
		},
	}

	for _, uni := range selection {
		table.Columns = append(table.Columns, ComparisonColumn{
			ID:      uni.ID,
			Name:    uni.Name,
			Country: uni.Country,
		})
		table.Rows[0].Values = append(table.Rows[0].Values, formatDecimal(uni.MinGPA.Float64()))
		table.Rows[1].Values = append(table.Rows[1].Values, formatDecimal(uni.MinIELTS.Float64()))
		table.Rows[2].Values = append(table.Rows[2].Values, FormatTuition(uni.Tuition.Float64()))
	}

	return table
}

// FormatTuition renders a non-negative amount as "$12,500" or "$12,500.5"
func FormatTuition(amount float64) string {
	if amount < 0 {
		amount = 0
	}
	cents := int64(math.Round(amount * 100))

	digits := strconv.FormatInt(cents/100, 10)
	grouped := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, digits[i])
	}

	out := "$" + string(grouped)
	if rem := cents % 100; rem > 0 {
		frac := fmt.Sprintf("%02d", rem)
		out += "." + strings.TrimRight(frac, "0")
	}
	return out
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
