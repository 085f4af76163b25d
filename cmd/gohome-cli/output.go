package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joshp123/gohome-tfiac/internal/climate"
)

type outputMode struct {
	json bool
}

// print writes value as indented JSON in --json mode, otherwise the
// rows as an aligned table.
func (o outputMode) print(value any, rows func() [][]string) error {
	if o.json {
		return o.printJSON(value)
	}
	o.table(rows())
	return nil
}

func (o outputMode) printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("format json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func (o outputMode) table(rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func stateRows(states ...climate.State) [][]string {
	rows := [][]string{{"ID", "NAME", "AVAILABLE", "MODE", "CURRENT", "TARGET", "FAN", "SWING"}}
	for _, s := range states {
		rows = append(rows, []string{
			s.UniqueID,
			s.Name,
			strconv.FormatBool(s.Available),
			orDash(string(s.HVACMode)),
			formatTemp(s.CurrentTemperature, s.Unit),
			formatTemp(s.TargetTemperature, s.Unit),
			orDash(s.FanMode),
			orDash(s.SwingMode),
		})
	}
	return rows
}

func formatTemp(v *float64, unit climate.TemperatureUnit) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + string(unit)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
