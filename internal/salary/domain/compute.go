package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	consumptiondomain "github.com/emadn88/elmcorner/internal/consumption/domain"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
)

// MonthBounds returns [first day of month, first day of next month) in UTC.
func MonthBounds(month, year int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func PreviousMonth(month, year int) (int, int) {
	if month == 1 {
		return 12, year - 1
	}
	return month - 1, year
}

// Compute builds the breakdown from attended classes. Non-attended rows are ignored.
func Compute(teacher rosterdomain.Teacher, month, year int, classes []consumptiondomain.ClassRecord) SalaryLine {
	attended := make([]consumptiondomain.ClassRecord, 0, len(classes))
	for _, c := range classes {
		if c.IsAttended() {
			attended = append(attended, c)
		}
	}
	consumptiondomain.SortChronologically(attended)

	line := SalaryLine{
		TeacherID:   teacher.ID,
		TeacherName: teacher.Name,
		Month:       month,
		Year:        year,
		HourlyRate:  teacher.HourlyRate,
		Currency:    strings.ToUpper(teacher.Currency),
		Classes:     make([]ClassLine, 0, len(attended)),
	}
	for _, c := range attended {
		salary := c.DurationHours * teacher.HourlyRate
		line.Classes = append(line.Classes, ClassLine{
			ClassID:       c.ID,
			StudentID:     c.StudentID,
			CourseID:      c.CourseID,
			ClassDate:     c.ClassDate,
			StartTime:     c.StartTime,
			EndTime:       c.EndTime,
			DurationHours: c.DurationHours,
			Salary:        salary,
		})
		line.TotalHours += c.DurationHours
	}
	line.TotalClasses = len(line.Classes)
	line.TotalSalary = line.TotalHours * teacher.HourlyRate
	return line
}

// Convert returns a copy of the line with money fields multiplied by rate.
// Hours and the receiver are left unchanged.
func (l SalaryLine) Convert(c Conversion) SalaryLine {
	out := l
	out.HourlyRate = l.HourlyRate * c.Rate
	out.TotalSalary = l.TotalSalary * c.Rate
	out.Currency = strings.ToUpper(c.ToCurrency)
	out.Classes = make([]ClassLine, len(l.Classes))
	for i, cl := range l.Classes {
		cl.Salary = cl.Salary * c.Rate
		out.Classes[i] = cl
	}
	conv := c
	out.Conversion = &conv
	return out
}

// Aggregate groups current and previous-month lines per currency. previous is
// keyed by teacher and must already be in the same display currency as current.
func Aggregate(month, year int, current []SalaryLine, previous map[snowflake.ID]float64) Statistics {
	stats := Statistics{
		Month:      month,
		Year:       year,
		Currencies: []CurrencyStatistics{},
		Teachers:   make([]TeacherStatistics, 0, len(current)),
	}
	byCurrency := make(map[string]*CurrencyStatistics)
	for _, line := range current {
		prev := previous[line.TeacherID]
		stats.Teachers = append(stats.Teachers, TeacherStatistics{
			TeacherID:           line.TeacherID,
			TeacherName:         line.TeacherName,
			Currency:            line.Currency,
			TotalClasses:        line.TotalClasses,
			TotalHours:          line.TotalHours,
			TotalSalary:         line.TotalSalary,
			PreviousMonthSalary: prev,
		})

		cs, ok := byCurrency[line.Currency]
		if !ok {
			cs = &CurrencyStatistics{Currency: line.Currency}
			byCurrency[line.Currency] = cs
		}
		cs.TeacherCount++
		cs.TotalHours += line.TotalHours
		cs.TotalSalary += line.TotalSalary
		cs.PreviousMonthSalary += prev
	}

	for _, cs := range byCurrency {
		if cs.TeacherCount > 0 {
			cs.AverageSalary = cs.TotalSalary / float64(cs.TeacherCount)
		}
		stats.Currencies = append(stats.Currencies, *cs)
	}
	sort.Slice(stats.Currencies, func(i, j int) bool {
		return stats.Currencies[i].Currency < stats.Currencies[j].Currency
	})
	return stats
}
