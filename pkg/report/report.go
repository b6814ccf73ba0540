// Package report aggregates a collected transaction table by category and
// by purchase month. Amounts are summed as decimals so report totals do
// not drift with float rounding.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmesquita/openpull/pkg/api"
)

// Month is a calendar month a transaction falls into.
type Month struct {
	Year  int
	Month time.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%d/%02d", m.Year, int(m.Month))
}

// Before orders months chronologically.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// Report holds the aggregated totals of one transaction table.
type Report struct {
	ByCategory map[string]decimal.Decimal
	ByMonth    map[Month]decimal.Decimal
	Total      decimal.Decimal
	Count      int
}

// Categories returns the category keys in lexical order.
func (r *Report) Categories() []string {
	categories := make([]string, 0, len(r.ByCategory))
	for category := range r.ByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// Months returns the month keys in chronological order.
func (r *Report) Months() []Month {
	months := make([]Month, 0, len(r.ByMonth))
	for month := range r.ByMonth {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

// FromTransactions aggregates an in-memory batch.
func FromTransactions(transactions []api.Transaction) (*Report, error) {
	r := newReport()
	for i := range transactions {
		t := &transactions[i]
		amount := decimal.NewFromFloat(t.Amount)
		if err := r.add(t.Category, t.Date, amount); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FromCSV aggregates a file produced by the CSV sink.
func FromCSV(path string) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transaction table: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	dateCol, categoryCol, amountCol := -1, -1, -1
	for i, name := range header {
		switch name {
		case "date":
			dateCol = i
		case "category":
			categoryCol = i
		case "amount":
			amountCol = i
		}
	}
	if dateCol < 0 || categoryCol < 0 || amountCol < 0 {
		return nil, fmt.Errorf("transaction table %s is missing date/category/amount columns", path)
	}

	r := newReport()
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		amount, err := decimal.NewFromString(row[amountCol])
		if err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", row[amountCol], err)
		}
		if err := r.add(row[categoryCol], row[dateCol], amount); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func newReport() *Report {
	return &Report{
		ByCategory: make(map[string]decimal.Decimal),
		ByMonth:    make(map[Month]decimal.Decimal),
	}
}

func (r *Report) add(category, date string, amount decimal.Decimal) error {
	parsed, err := parseDate(date)
	if err != nil {
		return err
	}
	month := Month{Year: parsed.Year(), Month: parsed.Month()}

	if category == "" {
		category = "uncategorized"
	}

	r.ByCategory[category] = r.ByCategory[category].Add(amount)
	r.ByMonth[month] = r.ByMonth[month].Add(amount)
	r.Total = r.Total.Add(amount)
	r.Count++
	return nil
}

// dateLayouts are the formats the provider has been seen using.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
