package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/services"
)

func displayKey(key string, reveal bool) string {
	if reveal {
		return key
	}
	return models.MaskKey(key)
}

func status(active bool) string {
	if active {
		return "active"
	}
	return "disabled"
}

// renderKeys prints keys as a table followed by the usage total
func renderKeys(w io.Writer, keys []models.APIKey, reveal bool) {
	if len(keys) == 0 {
		fmt.Fprintln(w, "No API keys yet. Use 'api-keys keys create' to issue one.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Key", "Status", "Usage", "Limit", "Remaining", "Created"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	for i := range keys {
		k := &keys[i]
		t.AppendRow(table.Row{
			k.ID,
			k.Name,
			displayKey(k.Key, reveal),
			status(k.IsActive),
			k.Usage,
			k.MonthlyLimit,
			k.Remaining(),
			k.CreatedAt.Format("2006-01-02"),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", services.SumUsage(keys), "", "", ""})
	t.Render()
}

// renderVerdict prints a validation result as key/value rows
func renderVerdict(w io.Writer, v services.Verdict) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendRow(table.Row{"Outcome", v.Outcome.String()})
	if v.Valid() {
		t.AppendRows([]table.Row{
			{"Key ID", v.KeyID},
			{"Name", v.KeyName},
			{"Usage", strconv.Itoa(v.Usage) + " / " + strconv.Itoa(v.MonthlyLimit)},
			{"Remaining", v.Remaining},
		})
	}
	t.Render()
}

// renderChange prints one feed event on a single line
func renderChange(w io.Writer, ev models.ChangeEvent, total int) {
	rec := ev.Record()
	if rec == nil {
		fmt.Fprintf(w, "%-6s (no row)\n", ev.Type)
		return
	}
	fmt.Fprintf(w, "%-6s %s %q %s usage=%d/%d total_usage=%d\n",
		ev.Type, rec.ID, rec.Name, status(rec.IsActive), rec.Usage, rec.MonthlyLimit, total)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
