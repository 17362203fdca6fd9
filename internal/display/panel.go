// Package display drives the 20x4 status panel and its three indicators.
package display

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"CovidSentinel/internal/model"
)

const (
	Rows = 4
	Cols = 20

	noDate = "1970-01-01"
)

// Indicators are the error, old-data and new-data lamps.
type Indicators struct {
	Error bool `json:"error"`
	Old   bool `json:"old"`
	New   bool `json:"new"`
}

// Device renders the panel contents.
type Device interface {
	Render(lines [Rows]string, ind Indicators) error
}

// State is a snapshot of what the panel shows.
type State struct {
	Date       string       `json:"date"`
	Lines      [Rows]string `json:"lines"`
	Indicators Indicators   `json:"indicators"`
}

// Panel keeps the current output, pushes it to the device and mirrors it to
// the last-output file so a restart can restore it.
type Panel struct {
	mu    sync.Mutex
	dev   Device
	path  string
	state State
}

// Header is the fixed first row.
var Header = center("Cases", 10) + "|" + center("Deaths", 9)

func NewPanel(dev Device, lastOutputPath string) *Panel {
	p := &Panel{dev: dev, path: lastOutputPath}
	p.state.Date = noDate
	p.state.Lines[0] = Header
	return p
}

// Snapshot returns the current panel state.
func (p *Panel) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Date returns the date of the data on display.
func (p *Panel) Date() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Date
}

// ShowRecord displays a freshly ingested record and lights the new indicator.
func (p *Panel) ShowRecord(rec model.DailyRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Date = rec.Date
	p.state.Lines = RecordLines(rec)
	p.state.Indicators.Old, p.state.Indicators.New = false, true
	return p.commit(true)
}

// ShowStale displays the newest published figures when they are not yet today's.
func (p *Panel) ShowStale(raw model.RawRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Date = raw.Date
	p.state.Lines[1] = row(raw.CasesNew, raw.DeathsNew)
	p.state.Lines[2] = row(raw.CasesTotal, raw.DeathsTotal)
	return p.commit(true)
}

// ShowNoData latches the timeout output.
func (p *Panel) ShowNoData() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Date = noDate
	p.state.Lines = [Rows]string{Header, center("NO", Cols), center("DATA", Cols), center("TODAY", Cols)}
	p.state.Indicators = Indicators{Error: true}
	return p.commit(true)
}

// SetError switches the error indicator.
func (p *Panel) SetError(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Indicators.Error == on {
		return nil
	}
	p.state.Indicators.Error = on
	return p.commit(true)
}

// Searching lights the old-data indicator while the feed is polled.
func (p *Panel) Searching() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Indicators.Old = true
	return p.commit(false)
}

// NewDay clears the old and new indicators.
func (p *Panel) NewDay() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Indicators.Old, p.state.Indicators.New = false, false
	return p.commit(false)
}

// Reload restores the last output file. When it is missing or unreadable the
// panel is rebuilt from latest, the newest stored record.
func (p *Panel) Reload(latest func() (model.DailyRecord, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st, err := readLastOutput(p.path); err == nil {
		p.state = st
		log.Printf("[INFO] previous output restored from %s", p.path)
		return p.commit(false)
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] last output unreadable: %v", err)
	}

	rec, err := latest()
	switch {
	case err == nil:
		p.state.Date = rec.Date
		p.state.Lines = RecordLines(rec)
		return p.commit(true)
	default:
		log.Printf("[INFO] no previous data found: %v", err)
		p.state.Lines = [Rows]string{Header, "", center("No previous", Cols), center("data found.", Cols)}
		return p.commit(false)
	}
}

// commit pushes the state to the device and optionally persists it.
func (p *Panel) commit(persist bool) error {
	var errs []error
	if p.dev != nil {
		if err := p.dev.Render(p.state.Lines, p.state.Indicators); err != nil {
			errs = append(errs, fmt.Errorf("render: %w", err))
		}
	}
	if persist && p.path != "" {
		if err := writeLastOutput(p.path, p.state); err != nil {
			errs = append(errs, fmt.Errorf("write last output: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RecordLines lays out a record: header, new, total, corrections.
func RecordLines(rec model.DailyRecord) [Rows]string {
	return [Rows]string{
		Header,
		row(rec.Cases.New, rec.Deaths.New),
		row(rec.Cases.Total, rec.Deaths.Total),
		row(rec.Cases.Corrections, rec.Deaths.Corrections),
	}
}

func row(cases, deaths model.Int) string {
	return fmt.Sprintf("%10s|%9s", cell(cases), cell(deaths))
}

func cell(v model.Int) string {
	if !v.Valid {
		return "None"
	}
	return humanize.Comma(v.V)
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}

// writeLastOutput stores "<date>,<error>" followed by one line per row.
func writeLastOutput(path string, st State) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,%t\n", st.Date, st.Indicators.Error)
	for _, l := range st.Lines {
		b.WriteString(l + "\n")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func readLastOutput(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != Rows+1 {
		return State{}, fmt.Errorf("%s: want %d lines, got %d", path, Rows+1, len(lines))
	}
	date, flag, ok := strings.Cut(lines[0], ",")
	if !ok {
		return State{}, fmt.Errorf("%s: malformed status line %q", path, lines[0])
	}
	if _, err := model.ParseDate(date); err != nil {
		return State{}, err
	}
	st := State{Date: date, Indicators: Indicators{Error: flag == "true"}}
	copy(st.Lines[:], lines[1:])
	return st, nil
}

// WriterDevice draws the panel as text, e.g. on a terminal.
type WriterDevice struct {
	W io.Writer
}

func (d WriterDevice) Render(lines [Rows]string, ind Indicators) error {
	var b strings.Builder
	border := "+" + strings.Repeat("-", Cols) + "+"
	b.WriteString(border + "\n")
	for _, l := range lines {
		if len(l) > Cols {
			l = l[:Cols]
		}
		fmt.Fprintf(&b, "|%-20s|\n", l)
	}
	fmt.Fprintf(&b, "%s ERR:%s OLD:%s NEW:%s\n", border, lamp(ind.Error), lamp(ind.Old), lamp(ind.New))
	_, err := io.WriteString(d.W, b.String())
	return err
}

func lamp(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
