// Package render prints command results for the pressroom CLI.
//
// Output goes to the command's writer as json, yaml, or a table. Without
// --format, a terminal gets a table and anything else gets json. --tui
// hands the result to the interactive views instead.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/pressroom/cli/tui"
)

// inlineMapLimit is the largest map printed inline in a table cell.
const inlineMapLimit = 6

// Format represents an output format.
type Format string

// Supported output formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
// The empty string is returned as is so the caller can pick a default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer writes results in one format.
type Renderer struct {
	format Format
	out    io.Writer
}

// NewRenderer creates a renderer from the --format flag and the app writer.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}
	if format == "" {
		format = FormatJSON
		if f, ok := out.(*os.File); ok && isTTY(f) {
			format = FormatTable
		}
	}
	return &Renderer{format: format, out: out}, nil
}

// NewRendererWithWriter creates a renderer writing to out.
func NewRendererWithWriter(format Format, out io.Writer) *Renderer {
	return &Renderer{format: format, out: out}
}

// Render outputs data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		return enc.Encode(data)
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI opens the interactive view for viewType. refresh may be nil.
func (r *Renderer) RenderTUI(viewType string, data any, refresh tui.Refresher) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data, refresh)
}

// renderTable prints a slice of structs as rows under a header, and a
// single struct as name/value lines.
func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			_, _ = fmt.Fprintln(w, "(no results)")
			break
		}
		cols := columns(indirect(v.Index(0)).Type())
		names := make([]string, len(cols))
		for i, col := range cols {
			names[i] = col.name
		}
		_, _ = fmt.Fprintln(w, strings.Join(names, "\t"))
		for i := range v.Len() {
			row := indirect(v.Index(i))
			cells := make([]string, len(cols))
			for j, col := range cols {
				cells[j] = cell(row.Field(col.index))
			}
			_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	case reflect.Struct:
		for _, col := range columns(v.Type()) {
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", col.name, cell(v.Field(col.index)))
		}
	default:
		_, _ = fmt.Fprintf(w, "%v\n", data)
	}
	return w.Flush()
}

type column struct {
	name  string
	index int
}

// columns lists the exported fields of t under their json names.
func columns(t reflect.Type) []column {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var cols []column
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = strings.ToLower(f.Name)
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func cell(v reflect.Value) string {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return ""
	}
	v = indirect(v)

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		if v.Len() > inlineMapLimit {
			return fmt.Sprintf("{%d keys}", v.Len())
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = fmt.Sprintf("%v=%v", key.Interface(), v.MapIndex(key).Interface())
		}
		return strings.Join(parts, ", ")
	case reflect.Struct:
		if ts, ok := v.Interface().(time.Time); ok {
			return ts.Format(time.RFC3339)
		}
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
