// Package visit turns a user's raw selections (birth month, countries and
// first-visit dates or ages) into timeline records.
//
// A Request is built per render from whatever collected the input (the HTTP
// API or a CSV file) and is never shared between renders.
package visit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"countrytimeline/internal/catalog"
	"countrytimeline/internal/timeline"
)

// Input bounds.
const (
	MinYear = 1900
	MaxYear = 2100
	MaxAge  = 120
)

// ErrInvalidInput is wrapped by every validation failure.
var ErrInvalidInput = errors.New("invalid input")

// FieldError describes one invalid field of a Request.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *FieldError) Unwrap() error {
	return ErrInvalidInput
}

// YearMonth is a calendar month.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("unable to parse month '%s': %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: int(t.Month())}, nil
}

// Selection is one chosen country together with either the age at the first
// visit or the month of the first visit.
type Selection struct {
	Code  string     `json:"code"`
	Age   *int       `json:"age,omitempty"`
	Visit *YearMonth `json:"visit,omitempty"`
}

// Request is everything needed to render one chart.
type Request struct {
	Birth  YearMonth   `json:"birth"`
	Visits []Selection `json:"visits"`
}

// Resolved is a validated Request.
type Resolved struct {
	Records    []timeline.VisitRecord
	CurrentAge float64
}

// CurrentAge returns the age in whole years on the given day of someone born
// in the given month. The birthday counts as the first of the birth month.
func CurrentAge(birth YearMonth, today time.Time) float64 {
	age := today.Year() - birth.Year
	if int(today.Month()) < birth.Month {
		age--
	}
	return float64(age)
}

// AgeAt returns the fractional age at a visit month:
// (visit year - birth year) + (visit month - birth month) / 12.
func AgeAt(birth, visit YearMonth) float64 {
	return float64(visit.Year-birth.Year) + float64(visit.Month-birth.Month)/12
}

// Resolve validates req against the catalog and derives visit ages and the
// current age as of today.
//
// An empty selection yields timeline.ErrNothingToRender. Every other problem
// is reported as a *FieldError; all of them are joined into the returned
// error. Visits dated after today, before birth, or at an age past the current
// age are rejected rather than clamped.
func Resolve(req Request, cat catalog.Catalog, today time.Time) (*Resolved, error) {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	checkYearMonth(req.Birth, "birth", invalid)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	currentAge := CurrentAge(req.Birth, today)
	if currentAge < 0 {
		invalid("birth", "%s is in the future", req.Birth)
		return nil, errors.Join(errs...)
	}

	if len(req.Visits) == 0 {
		return nil, timeline.ErrNothingToRender
	}

	thisMonth := YearMonth{Year: today.Year(), Month: int(today.Month())}
	seen := make(map[string]bool, len(req.Visits))
	records := make([]timeline.VisitRecord, 0, len(req.Visits))

	for i, sel := range req.Visits {
		field := fmt.Sprintf("visits[%d]", i)

		country, ok := cat.Lookup(sel.Code)
		if !ok {
			invalid(field, "unknown country code %q", sel.Code)
			continue
		}
		if seen[country.Code] {
			invalid(field, "%s selected more than once", country.Name)
			continue
		}
		seen[country.Code] = true

		var age float64
		switch {
		case sel.Age != nil && sel.Visit != nil:
			invalid(field, "give either the age or the month of the first visit to %s, not both", country.Name)
			continue
		case sel.Age != nil:
			if *sel.Age < 0 || *sel.Age > MaxAge {
				invalid(field, "age %d at first visit to %s is outside 0..%d", *sel.Age, country.Name, MaxAge)
				continue
			}
			age = float64(*sel.Age)
		case sel.Visit != nil:
			before := len(errs)
			checkYearMonth(*sel.Visit, field+".visit", invalid)
			if len(errs) > before {
				continue
			}
			if sel.Visit.Year > thisMonth.Year || (sel.Visit.Year == thisMonth.Year && sel.Visit.Month > thisMonth.Month) {
				invalid(field, "first visit to %s on %s is in the future", country.Name, sel.Visit)
				continue
			}
			age = AgeAt(req.Birth, *sel.Visit)
			if age < 0 {
				invalid(field, "first visit to %s on %s is before birth", country.Name, sel.Visit)
				continue
			}
		default:
			invalid(field, "missing age or month of the first visit to %s", country.Name)
			continue
		}

		if age > currentAge {
			if math.Floor(age) <= currentAge {
				// a past month after the last birthday still reads as a later age
				invalid(field, "age %s at first visit to %s is past the current age %s, which counts whole years until the next birthday in %s",
					timeline.FormatAge(age), country.Name, timeline.FormatAge(currentAge), nextBirthday(req.Birth, thisMonth))
			} else {
				invalid(field, "age %s at first visit to %s is past the current age %s",
					timeline.FormatAge(age), country.Name, timeline.FormatAge(currentAge))
			}
			continue
		}

		records = append(records, timeline.VisitRecord{
			CountryName: country.Name,
			CountryCode: country.Code,
			Continent:   country.Continent,
			VisitAge:    age,
		})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Resolved{Records: records, CurrentAge: currentAge}, nil
}

// nextBirthday is the first birthday month after thisMonth.
func nextBirthday(birth, thisMonth YearMonth) YearMonth {
	next := YearMonth{Year: thisMonth.Year, Month: birth.Month}
	if birth.Month <= thisMonth.Month {
		next.Year++
	}
	return next
}

func checkYearMonth(ym YearMonth, field string, invalid func(field, format string, args ...any)) {
	if ym.Month < 1 || ym.Month > 12 {
		invalid(field, "month %d is outside 1..12", ym.Month)
	}
	if ym.Year < MinYear || ym.Year > MaxYear {
		invalid(field, "year %d is outside %d..%d", ym.Year, MinYear, MaxYear)
	}
}
