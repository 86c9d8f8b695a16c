// Package render formats read-only command output.
//
// Format selection: table on a TTY, json otherwise, --format always
// wins. --no-color affects table output only; the TUI styles itself.
// Types that implement Tabular control their own table layout; anything
// else falls back to a reflective rendering keyed off json tags.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/chaossec-io/chaossec/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Tabular lets a type describe its own table layout. Rows render in
// the order returned; every row must have one cell per header.
type Tabular interface {
	TableHeader() []string
	TableRows() [][]string
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context, applying the TTY
// format defaults.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
		if isTTY(os.Stdout) {
			format = FormatTable
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     os.Stdout,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
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

// RenderTUI initiates TUI mode for the given view type.
// TUI is opt-in only and read-only only.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderTable(data any) error {
	if tab, ok := data.(Tabular); ok {
		return r.writeGrid(tab.TableHeader(), tab.TableRows())
	}

	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return r.renderList(v)
	case reflect.Struct, reflect.Map:
		return r.renderFields(v)
	default:
		_, err := fmt.Fprintf(r.out, "%v\n", data)
		return err
	}
}

// renderList prints one row per element with a shared header row.
func (r *Renderer) renderList(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	elem := deref(v.Index(0))
	switch elem.Kind() {
	case reflect.Struct:
		headers := columnLabels(elem.Type())
		rows := make([][]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			row := deref(v.Index(i))
			cells := make([]string, 0, len(headers))
			for j := 0; j < row.NumField(); j++ {
				cells = append(cells, cellText(row.Field(j)))
			}
			rows = append(rows, cells)
		}
		return r.writeGrid(headers, rows)
	case reflect.Map:
		headers := mapLabels(elem)
		rows := make([][]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			row := deref(v.Index(i))
			cells := make([]string, 0, len(headers))
			for _, h := range headers {
				cells = append(cells, cellText(row.MapIndex(reflect.ValueOf(h))))
			}
			rows = append(rows, cells)
		}
		return r.writeGrid(headers, rows)
	default:
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintln(r.out, cellText(v.Index(i)))
		}
		return nil
	}
}

// renderFields prints a single struct or map as a key/value listing.
func (r *Renderer) renderFields(v reflect.Value) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	if v.Kind() == reflect.Struct {
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			fmt.Fprintf(w, "%s:\t%s\n", fieldLabel(t.Field(i)), cellText(v.Field(i)))
		}
		return nil
	}

	iter := v.MapRange()
	for iter.Next() {
		fmt.Fprintf(w, "%v:\t%s\n", iter.Key().Interface(), cellText(iter.Value()))
	}
	return nil
}

// writeGrid prints a header row followed by data rows.
func (r *Renderer) writeGrid(headers []string, rows [][]string) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func deref(v reflect.Value) reflect.Value {
	for (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

// columnLabels derives header names from a struct's json tags.
func columnLabels(t reflect.Type) []string {
	labels := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		labels = append(labels, fieldLabel(t.Field(i)))
	}
	return labels
}

func mapLabels(v reflect.Value) []string {
	labels := make([]string, 0, v.Len())
	for _, key := range v.MapKeys() {
		labels = append(labels, fmt.Sprintf("%v", key.Interface()))
	}
	return labels
}

// fieldLabel prefers the json tag name, falling back to the lowercased
// field name.
func fieldLabel(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
		return tag
	}
	return strings.ToLower(f.Name)
}

// cellText renders one value for a table cell. Timestamps collapse to
// RFC 3339, containers to their sizes.
func cellText(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	v = deref(v)
	if !v.IsValid() || (v.Kind() == reflect.Ptr && v.IsNil()) {
		return ""
	}

	if v.CanInterface() {
		switch x := v.Interface().(type) {
		case time.Time:
			if x.IsZero() {
				return ""
			}
			return x.UTC().Format(time.RFC3339)
		case time.Duration:
			return x.String()
		case fmt.Stringer:
			return x.String()
		}
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// isTTY returns true if the writer is a TTY.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
