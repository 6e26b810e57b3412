// Package export renders weekly timetable grids into downloadable formats.
package export

// Table is an ordered tabular dataset. Column order is significant: weekly
// timetables place the time column first followed by the configured days.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}
