// Package render provides centralized output rendering for the haul CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Table output flattens embedded structs and prints byte counts in IEC
// units. --no-color affects table output only; TUI mode uses its own styling.
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

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/haul/cli/tui"
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

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
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

// Format returns the selected output format.
func (r *Renderer) Format() Format { return r.format }

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI initiates TUI mode for the given view type. TUI is opt-in and
// read-only.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func (r *Renderer) renderTable(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice {
		return r.renderSliceTable(v)
	}
	return r.renderStructTable(v)
}

// column is one rendered field, possibly reached through embedded structs.
type column struct {
	name  string
	index []int
}

// columns lists the exported fields of t, flattening anonymous struct fields.
func columns(t reflect.Type) []column {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var cols []column
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			continue
		}
		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				continue
			}
		}
		name := fieldName(f)
		if name == "" {
			continue
		}
		cols = append(cols, column{name: name, index: f.Index})
	}
	return cols
}

// field resolves a column on v, returning an invalid Value when an embedded
// pointer on the path is nil.
func field(v reflect.Value, col column) reflect.Value {
	for i, idx := range col.index {
		if i > 0 {
			if v.Kind() == reflect.Ptr {
				if v.IsNil() {
					return reflect.Value{}
				}
				v = v.Elem()
			}
		}
		v = v.Field(idx)
	}
	return v
}

func (r *Renderer) renderSliceTable(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	first := indirect(v.Index(0))
	switch first.Kind() {
	case reflect.Struct:
		cols := columns(first.Type())
		headers := make([]string, len(cols))
		for i, col := range cols {
			headers[i] = col.name
		}
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for i := 0; i < v.Len(); i++ {
			row := indirect(v.Index(i))
			values := make([]string, len(cols))
			for j, col := range cols {
				values[j] = formatValue(col.name, field(row, col))
			}
			fmt.Fprintln(w, strings.Join(values, "\t"))
		}
	case reflect.Map:
		keys := sortedKeys(first)
		fmt.Fprintln(w, strings.Join(keys, "\t"))
		for i := 0; i < v.Len(); i++ {
			row := indirect(v.Index(i))
			values := make([]string, len(keys))
			for j, k := range keys {
				values[j] = formatValue(k, row.MapIndex(reflect.ValueOf(k)))
			}
			fmt.Fprintln(w, strings.Join(values, "\t"))
		}
	default:
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintf(w, "%v\n", v.Index(i).Interface())
		}
	}
	return nil
}

func (r *Renderer) renderStructTable(v reflect.Value) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	v = indirect(v)
	switch v.Kind() {
	case reflect.Struct:
		for _, col := range columns(v.Type()) {
			fmt.Fprintf(w, "%s:\t%s\n", col.name, formatValue(col.name, field(v, col)))
		}
	case reflect.Map:
		for _, k := range sortedKeys(v) {
			fmt.Fprintf(w, "%s:\t%s\n", k, formatValue(k, v.MapIndex(reflect.ValueOf(k))))
		}
	case reflect.Invalid:
		fmt.Fprintln(w, "(none)")
	default:
		fmt.Fprintf(w, "%v\n", v.Interface())
	}
	return nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// sortedKeys returns the string keys of a map in order. Non-string keys
// render via fmt.
func sortedKeys(v reflect.Value) []string {
	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, fmt.Sprintf("%v", k.Interface()))
	}
	sort.Strings(keys)
	return keys
}

func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

// isByteCount reports whether a column holds a byte count.
func isByteCount(name string) bool {
	return strings.HasSuffix(name, "_bytes") || name == "chunk_size"
}

func formatValue(name string, v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.String {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, "; ")
		}
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
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
		return "{...}"
	case reflect.Int, reflect.Int32, reflect.Int64:
		if isByteCount(name) {
			return humanize.IBytes(uint64(max(v.Int(), 0)))
		}
		return fmt.Sprintf("%d", v.Int())
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
