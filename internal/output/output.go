// Package output renders events for the terminal: tables, JSON and the
// short confirmation blocks printed after add, edit and delete.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/tazhate/justcal/internal/domain"
)

const (
	uidWidth      = 12
	titleWidth    = 40
	locationWidth = 20
)

// Format selects how event lists are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (use table or json)", s)
}

// Printer writes command output to an io.Writer.
type Printer struct {
	out        io.Writer
	dateFormat string // timed start/end columns in search results
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, dateFormat: "2006-01-02 15:04"}
}

// SetDateFormat sets the Go time layout used for timed search columns.
func (p *Printer) SetDateFormat(layout string) {
	if layout != "" {
		p.dateFormat = layout
	}
}

func borderlessTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(true)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// Events prints the list view: UID, title, time range and location.
func (p *Printer) Events(events []domain.Event, format Format) error {
	if format == FormatJSON {
		return p.JSON(events)
	}
	if len(events) == 0 {
		fmt.Fprintln(p.out, "No events found.")
		return nil
	}

	table := borderlessTable(p.out, []string{"UID", "TITLE", "WHEN", "LOCATION"})
	for i := range events {
		e := &events[i]
		table.Append([]string{
			truncate(e.UID, uidWidth),
			truncate(e.Title, titleWidth),
			FormatTimeRange(e),
			truncate(e.Location, locationWidth),
		})
	}
	table.Render()
	p.total(len(events))
	return nil
}

// SearchResults prints the search view with separate start and end columns.
func (p *Printer) SearchResults(events []domain.Event, format Format) error {
	if format == FormatJSON {
		return p.JSON(events)
	}
	if len(events) == 0 {
		fmt.Fprintln(p.out, "No events found.")
		return nil
	}

	table := borderlessTable(p.out, []string{"UID", "TITLE", "START", "END", "LOCATION"})
	for i := range events {
		e := &events[i]
		start, end := e.Start.Format(p.dateFormat), e.End.Format(p.dateFormat)
		if e.AllDay {
			start, end = e.Start.Format("2006-01-02"), e.LastDay().Format("2006-01-02")
		}
		table.Append([]string{
			truncate(e.UID, uidWidth),
			truncate(e.Title, titleWidth),
			start,
			end,
			truncate(e.Location, locationWidth),
		})
	}
	table.Render()
	p.total(len(events))
	return nil
}

func (p *Printer) total(n int) {
	fmt.Fprintf(p.out, "\nTotal: %d event(s)\n", n)
}

// eventJSON is the stable JSON shape of an event.
type eventJSON struct {
	UID         string `json:"uid"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
	Location    string `json:"location"`
	AllDay      bool   `json:"all_day"`
	Recurrence  string `json:"recurrence,omitempty"`
}

func toJSON(e *domain.Event) eventJSON {
	layout := "2006-01-02T15:04:05Z07:00"
	if e.AllDay {
		layout = "2006-01-02"
	}
	return eventJSON{
		UID:         e.UID,
		Title:       e.Title,
		Start:       e.Start.Format(layout),
		End:         e.End.Format(layout),
		Description: e.Description,
		Location:    e.Location,
		AllDay:      e.AllDay,
		Recurrence:  e.RRule,
	}
}

// JSON prints events as an indented JSON array. An empty list prints "[]".
func (p *Printer) JSON(events []domain.Event) error {
	out := make([]eventJSON, 0, len(events))
	for i := range events {
		out = append(out, toJSON(&events[i]))
	}
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	return nil
}

// Details prints the indented field block shown under a confirmation line.
func (p *Printer) Details(e *domain.Event) {
	fmt.Fprintf(p.out, "  UID: %s\n", e.UID)
	fmt.Fprintf(p.out, "  When: %s\n", FormatTimeRange(e))
	if e.AllDay {
		fmt.Fprintln(p.out, "  All-day event: Yes")
	}
	if e.Description != "" {
		fmt.Fprintf(p.out, "  Description: %s\n", e.Description)
	}
	if e.Location != "" {
		fmt.Fprintf(p.out, "  Location: %s\n", e.Location)
	}
	if e.RRule != "" {
		fmt.Fprintf(p.out, "  Recurrence: %s\n", e.RRule)
	}
}

// Changes prints the list returned by an edit.
func (p *Printer) Changes(changes []string) {
	fmt.Fprintln(p.out, "\nChanges:")
	for _, c := range changes {
		fmt.Fprintf(p.out, "  - %s\n", c)
	}
}

// Success prints a green check line.
func (p *Printer) Success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
}

// Warning prints a yellow line.
func (p *Printer) Warning(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(p.out, format+"\n", args...)
}

// Println writes a plain line.
func (p *Printer) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}

// Printf writes plain formatted text.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// FormatTimeRange renders when an event happens:
//
//	all-day, one day:   "Sat, 2026-01-10"
//	all-day, several:   "Sat, 2026-01-10 - Mon, 2026-01-12"
//	same-day timed:     "Sun, 2026-01-11 7:00 PM - 8:00 PM"
//	multi-day timed:    "Sat, 2026-01-10 7:00 PM - Mon, 2026-01-12 9:00 AM"
func FormatTimeRange(e *domain.Event) string {
	const (
		day   = "Mon, 2006-01-02"
		clock = "3:04 PM"
	)
	if e.AllDay {
		last := e.LastDay()
		if !last.After(e.Start) {
			return e.Start.Format(day)
		}
		return e.Start.Format(day) + " - " + last.Format(day)
	}
	if e.SameDay() {
		return e.Start.Format(day+" "+clock) + " - " + e.End.Format(clock)
	}
	return e.Start.Format(day+" "+clock) + " - " + e.End.Format(day+" "+clock)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
