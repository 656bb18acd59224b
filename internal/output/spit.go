// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"

	"github.com/staranto/tennisbet/internal/attrs"
	"github.com/staranto/tennisbet/internal/config"
	"github.com/staranto/tennisbet/internal/filters"
	"github.com/staranto/tennisbet/internal/store"
)

// Options are the presentation flags shared by every query command.
type Options struct {
	Output string
	Filter string
	Sort   string
	Titles bool
	Color  bool
}

// OptionsFromCommand reads Options from the command's flags. Color follows
// the flag when it was given and otherwise whether stdout is a terminal.
func OptionsFromCommand(cmd *cli.Command) Options {
	color := cmd.Bool("color")
	if !cmd.IsSet("color") {
		color = IsTerminal(os.Stdout)
	}
	return Options{
		Output: cmd.String("output"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
		Titles: cmd.Bool("titles"),
		Color:  color,
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// SliceDiceSpit filters, transforms, sorts and renders rows according to opts.
// raw output skips everything and dumps the rows as stored.
func SliceDiceSpit(rows store.Rows, al attrs.AttrList, opts Options, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}

	if opts.Output == "raw" {
		return writeJSON(w, rows)
	}

	// Filter first so the following steps work on a smaller dataset.
	dataset := filters.FilterRows(rows, al, opts.Filter)

	for _, row := range dataset {
		for i := range al {
			attr := &al[i]
			if attr.TransformSpec != "" && attr.Key != "*" {
				row[attr.OutputKey] = attr.Transform(row[attr.OutputKey])
			}
		}
	}

	SortDataset(dataset, opts.Sort)

	included := al.Included()
	switch opts.Output {
	case "json":
		ordered := make([]map[string]any, 0, len(dataset))
		for _, row := range dataset {
			m := make(map[string]any, len(included))
			for _, attr := range included {
				m[attr.OutputKey] = jsonValue(row[attr.OutputKey])
			}
			ordered = append(ordered, m)
		}
		return writeJSON(w, ordered)
	case "yaml":
		// MapSlice keeps the attr order that a map would lose.
		docs := make([]yaml.MapSlice, 0, len(dataset))
		for _, row := range dataset {
			ms := make(yaml.MapSlice, 0, len(included))
			for _, attr := range included {
				ms = append(ms, yaml.MapItem{Key: attr.OutputKey, Value: jsonValue(row[attr.OutputKey])})
			}
			docs = append(docs, ms)
		}
		out, err := yaml.Marshal(docs)
		if err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return TableWriter(dataset, included, opts, w)
	}
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// jsonValue renders times the way they are stored.
func jsonValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return v
}

// TableWriter renders the result set as a borderless table honoring color and
// titles.
func TableWriter(resultSet []map[string]any, included attrs.AttrList, opts Options, w io.Writer) error {
	if len(resultSet) == 0 {
		log.Debug("nothing to render")
		return nil
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if opts.Color {
		headerColor, evenColor, oddColor := getColors("colors")

		headerStyle = headerStyle.Foreground(lipgloss.Color(headerColor))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(evenColor))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(oddColor))
	}

	pad, _ := config.GetInt("padding", 1)

	rows := make([][]string, 0, len(resultSet))
	for _, result := range resultSet {
		row := make([]string, 0, len(included))
		for _, attr := range included {
			row = append(row, InterfaceToString(result[attr.OutputKey], "-"))
		}
		rows = append(rows, row)
	}

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}
			if col > 0 {
				style = style.PaddingLeft(pad)
			}
			return style
		}).
		Headers().
		Rows(rows...)

	if opts.Titles {
		headers := make([]string, 0, len(included))
		for _, attr := range included {
			headers = append(headers, attr.OutputKey)
		}
		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers(headers...).BorderHeader(false)
	}

	_, err := fmt.Fprintln(w, t.String())
	return err
}

// getColors returns configured color values for table rendering.
func getColors(key string) (header string, even string, odd string) {
	header, _ = config.GetString(key+".title", "#f6be00")
	even, _ = config.GetString(key+".even", "#ffffff")
	odd, _ = config.GetString(key+".odd", "#00c8f0")
	return
}

// InterfaceToString renders a cell. nil and empty strings become emptyValue
// (default ""); zero numbers and false are real values and print as such.
func InterfaceToString(value any, emptyValue ...string) string {
	if len(emptyValue) == 0 {
		emptyValue = []string{""}
	}

	if value == nil {
		return emptyValue[0]
	}

	switch value := value.(type) {
	case string:
		if value == "" {
			return emptyValue[0]
		}
		return value
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		return value.Format(time.RFC3339)
	default:
		if rv := reflect.ValueOf(value); (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map) && rv.Len() == 0 {
			return emptyValue[0]
		}
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(jsonBytes)
	}
}
