// Package report renders simulation results for people: run summaries,
// purchase ledgers and strategy comparison tables. It also extracts the
// (time, total produced) series used for plotting.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/talgya/idle-sim/internal/catalog"
	"github.com/talgya/idle-sim/internal/engine"
)

// Point is one sample of cumulative production over time.
type Point struct {
	Time          float64 `json:"time"`
	TotalProduced float64 `json:"total_produced"`
}

// Series returns the cumulative production curve of a ledger.
func Series(history []engine.HistoryEntry) []Point {
	pts := make([]Point, len(history))
	for i, h := range history {
		pts[i] = Point{Time: h.Time, TotalProduced: h.TotalProduced}
	}
	return pts
}

// Summary is the headline numbers of one run.
type Summary struct {
	Strategy      string  `json:"strategy"`
	Resource      float64 `json:"resource"`
	Rate          float64 `json:"rate"`
	Time          float64 `json:"time"`
	TotalProduced float64 `json:"total_produced"`
	Purchases     int     `json:"purchases"`
	StopReason    string  `json:"stop_reason"`
}

// Summarize extracts the headline numbers of a run.
func Summarize(name string, res engine.Result) Summary {
	st := res.State
	return Summary{
		Strategy:      name,
		Resource:      st.Resource(),
		Rate:          st.Rate(),
		Time:          st.Time(),
		TotalProduced: st.TotalProduced(),
		Purchases:     st.Purchases(),
		StopReason:    string(res.Reason),
	}
}

// Formatter renders numbers either raw or humanized.
type Formatter struct {
	Pretty bool
}

// Num formats a float.
func (f Formatter) Num(v float64) string {
	if !f.Pretty {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if v >= 1e15 {
		return humanize.SIWithDigits(v, 3, "")
	}
	return humanize.CommafWithDigits(v, 2)
}

// Int formats a count.
func (f Formatter) Int(n int) string {
	if !f.Pretty {
		return strconv.Itoa(n)
	}
	return humanize.Comma(int64(n))
}

// WriteSummary prints one run's headline numbers.
func (f Formatter) WriteSummary(w io.Writer, s Summary) error {
	_, err := fmt.Fprintf(w, "%s: resource %s, rate %s, time %s, total produced %s, purchases %s (%s)\n",
		s.Strategy, f.Num(s.Resource), f.Num(s.Rate), f.Num(s.Time),
		f.Num(s.TotalProduced), f.Int(s.Purchases), s.StopReason)
	return err
}

// WriteLedger prints a purchase ledger as an aligned table.
func (f Formatter) WriteLedger(w io.Writer, history []engine.HistoryEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "time\titem\tcost\ttotal produced\t")
	for _, h := range history {
		item := h.Item
		if item == "" {
			item = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", f.Num(h.Time), item, f.Num(h.Cost), f.Num(h.TotalProduced))
	}
	return tw.Flush()
}

// Rank orders summaries by total produced, highest first. Ties keep their
// input order.
func Rank(summaries []Summary) []Summary {
	out := make([]Summary, len(summaries))
	copy(out, summaries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalProduced > out[j].TotalProduced
	})
	return out
}

// WriteComparison prints ranked summaries as a table.
func (f Formatter) WriteComparison(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "rank\tstrategy\ttotal produced\trate\tpurchases\tstop")
	for i, s := range Rank(summaries) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, s.Strategy, f.Num(s.TotalProduced), f.Num(s.Rate), f.Int(s.Purchases), s.StopReason)
	}
	return tw.Flush()
}

// WriteCatalog prints catalog items with their rate per unit of cost.
func (f Formatter) WriteCatalog(w io.Writer, growth float64, items []catalog.Item) error {
	fmt.Fprintf(w, "growth %s per purchase\n", f.Num(growth))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "item\tcost\trate\trate/cost")
	for _, it := range items {
		ratio := 0.0
		if it.Cost > 0 {
			ratio = it.Rate / it.Cost
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.3g\n", it.Name, f.Num(it.Cost), f.Num(it.Rate), ratio)
	}
	return tw.Flush()
}
