package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"CovidSentinel/internal/calculator"
	"CovidSentinel/internal/model"
)

// Fixed notices sent by the ingestion loop.
const (
	TimeoutNotice  = "No data was found for this day. Timed out."
	ExcludedNotice = "No data is being released for this day."
	NotFoundNotice = "No data was found for that day."
	ApologyNotice  = "Unhandled exception occurred when parsing your request. Please pester the bot admin for a solution."
)

// UKPopulation is the denominator for vaccination coverage.
const UKPopulation = 68306137

var weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var metricDots = map[model.Metric]string{
	model.Cases:  "🔵",
	model.Deaths: "🔴",
}

// arrow returns the direction marker for a change, or a cross when unknown.
func arrow(known bool, dir int) string {
	switch {
	case !known:
		return " ❌"
	case dir > 0:
		return " ⬆"
	case dir < 0:
		return " ⬇"
	}
	return " ➡"
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func fmtInt(v model.Int) string {
	if !v.Valid {
		return "None"
	}
	return humanize.Comma(v.V)
}

func fmtFloat(v model.Float) string {
	if !v.Valid {
		return "None"
	}
	return humanize.CommafWithDigits(v.V, 3)
}

func fmtPercent(v model.Float) string {
	if !v.Valid {
		return "None"
	}
	return humanize.CommafWithDigits(v.V*100, 3) + "%"
}

func pre(body string) string {
	return "<pre>" + html.EscapeString(body) + "</pre>"
}

// FormatDaily renders a derived record. history is the store snapshot and start
// the index to begin the last-highest search from.
func FormatDaily(rec model.DailyRecord, history []model.DailyRecord, start int, obtained time.Time) string {
	var b strings.Builder
	day := ""
	if rec.Day >= 0 && rec.Day < len(weekdays) {
		day = weekdays[rec.Day]
	}
	fmt.Fprintf(&b, "PRIMARY DATA FOR %s, %s\n", rec.Date, day)

	for _, m := range model.TrackedMetrics {
		mr := rec.Metric(m)
		fmt.Fprintf(&b, "%s%s:\n", metricDots[m], m)
		fmt.Fprintf(&b, "    New:          %s\n", fmtInt(mr.New))
		fmt.Fprintf(&b, "    Change:       %s%s\n", fmtInt(mr.Change), arrow(mr.Change.Valid, sign(float64(mr.Change.V))))
		fmt.Fprintf(&b, "    Last Highest: %s\n", lastHighest(history, rec, m, start))
		for _, w := range calculator.Windows {
			avg := mr.RollingAverages.Window(w)
			fmt.Fprintf(&b, "    Roll Avg (%d-Day):\n", w)
			fmt.Fprintf(&b, "      Average:    %s\n", fmtFloat(avg.Average))
			fmt.Fprintf(&b, "      Change:     %s%s\n", fmtFloat(avg.Change), arrow(avg.Change.Valid, sign(avg.Change.V)))
		}
		fmt.Fprintf(&b, "    Corrections:  %s\n", fmtInt(mr.Corrections))
		fmt.Fprintf(&b, "    Total:        %s\n", fmtInt(mr.Total))
	}

	cfr := rec.CaseFatality
	b.WriteString("🟡Case Fatality Rate:\n")
	fmt.Fprintf(&b, "    Rate:         %s\n", fmtPercent(cfr.Rate))
	change := "None"
	if cfr.Change.Valid {
		change = humanize.CommafWithDigits(cfr.Change.V*100, 3) + " p.p."
	}
	fmt.Fprintf(&b, "    Change:       %s%s\n", change, arrow(cfr.Change.Valid, sign(cfr.Change.V)))
	fmt.Fprintf(&b, "Obtained at %s", obtained.Format(time.RFC3339))
	return pre(b.String())
}

func lastHighest(history []model.DailyRecord, rec model.DailyRecord, m model.Metric, start int) string {
	if !rec.Metric(m).New.Valid {
		return "None"
	}
	found, ok := calculator.LastHighest(history, rec, m, start)
	if !ok {
		return "#N/A; all time highest"
	}
	return fmt.Sprintf("%s; %s", found.Date, humanize.Comma(found.Metric(m).New.V))
}

// FormatSecondary renders a vaccination record.
func FormatSecondary(rec model.SecondaryRecord, obtained time.Time) string {
	var b strings.Builder
	day := ""
	if wd, err := model.Weekday(rec.Date); err == nil {
		day = weekdays[wd]
	}
	pop := model.SomeInt(UKPopulation)
	fmt.Fprintf(&b, "🟢SECONDARY DATA FOR %s, %s\n", rec.Date, day)
	fmt.Fprintf(&b, "  UK Population:  %s\n", humanize.Comma(UKPopulation))
	doses := []struct {
		label        string
		added, total model.Int
	}{
		{"First Dose", rec.FirstDoseNew, rec.FirstDoseTotal},
		{"Second Dose", rec.SecondDoseNew, rec.SecondDoseTotal},
		{"Additional Doses", rec.AdditionalDoseNew, rec.AdditionalDoseTotal},
		{"Total Doses",
			rec.FirstDoseNew.Add(rec.SecondDoseNew).Add(rec.AdditionalDoseNew),
			rec.FirstDoseTotal.Add(rec.SecondDoseTotal).Add(rec.AdditionalDoseTotal)},
	}
	for _, d := range doses {
		fmt.Fprintf(&b, "  Vaccinations (%s):\n", d.label)
		fmt.Fprintf(&b, "    New:          %s\n", fmtInt(d.added))
		fmt.Fprintf(&b, "    Total:        %s\n", fmtInt(d.total))
		fmt.Fprintf(&b, "    %% Population: %s\n", fmtPercent(d.total.Float().Div(pop.Float())))
	}
	fmt.Fprintf(&b, "Obtained at %s", obtained.Format(time.RFC3339))
	return pre(b.String())
}

// FormatPeakEvents joins the peak tracker's event lines into one message.
func FormatPeakEvents(lines []string) string {
	return html.EscapeString(strings.Join(lines, "\n"))
}

// PeakRuleNote explains the streak thresholds under every peak listing.
const PeakRuleNote = "The bot will create a new local peak after 7 consecutive days of positive average change and will expire a local peak after 10 consecutive days of negative average change."

// FormatPeakState renders the requested peaks. A single metric and kind
// narrows the heading the same way the command does.
func FormatPeakState(state model.PeakState, metrics []model.Metric, kinds []model.PeakKind) string {
	if len(metrics) == 0 || len(kinds) == 0 {
		return ""
	}
	var b strings.Builder
	indent := ""
	switch {
	case len(metrics) > 1:
		b.WriteString("Rolling Average Peaks (7-Day):\n")
	case len(kinds) > 1:
		fmt.Fprintf(&b, "%s Rolling Average Peaks (7-Day):\n", metrics[0])
	default:
		fmt.Fprintf(&b, "%s %s Rolling Average Peaks (7-Day):\n", metrics[0], kindLabel(kinds[0]))
	}
	for _, m := range metrics {
		if len(metrics) > 1 {
			fmt.Fprintf(&b, "  %s:\n", m)
			indent = "  "
		}
		for _, k := range kinds {
			inner := indent
			if len(kinds) > 1 {
				fmt.Fprintf(&b, "%s  %s:\n", indent, kindLabel(k))
				inner += "  "
			}
			p := state[m].Get(k)
			date := "None"
			if p.IsSet() {
				date = p.Date
			}
			fmt.Fprintf(&b, "%s  Average: %s\n", inner, fmtFloat(p.Value))
			fmt.Fprintf(&b, "%s  Date:    %s\n", inner, date)
		}
	}
	b.WriteString("\n" + PeakRuleNote)
	return pre(b.String())
}

func kindLabel(k model.PeakKind) string {
	if k == model.PeakGlobal {
		return "Global"
	}
	return "Local"
}

// PeaksHelp describes the /peaks command.
const PeaksHelp = `Command format: /peaks [metric] [length]
Metric and length parameters are optional.

Valid inputs for metric:
  cases: return rolling average peaks for cases.
  deaths: return rolling average peaks for deaths.

Valid inputs for length:
  local: returns the current local peak, or none if no peak.
  global: returns the current all-time global peak, or none if no peak.`

// HelpText lists the chat commands.
const HelpText = `Command syntax:
  /getdata [date|latest]: returns the primary data for the date specified
    date: a date given in ISO 8601 (YYYY-MM-DD) form.
    latest: the literal word, returns the latest data available.
  /peaks: displays the latest rolling average peaks. Refer to /peaks help.
  /version: shows the current bot version.`

// FormatVersion renders the /version reply.
func FormatVersion(version string, latest *model.DailyRecord, storeValid bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CovidSentinel version %s\n", version)
	if latest != nil {
		fmt.Fprintf(&b, "Latest record: %s\n", latest.Date)
	}
	fmt.Fprintf(&b, "Store valid: %t", storeValid)
	return html.EscapeString(b.String())
}
