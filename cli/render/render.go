// Package render writes CLI responses as json, yaml or a table.
//
// Without --format, a terminal gets a table and anything else gets json.
// --no-color only touches table output; TUI views style themselves.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/ripestream/cli/tui"
)

// Format is an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a --format value. The empty string means "pick the
// default for the output".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	switch f {
	case "", FormatJSON, FormatTable, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
}

// Renderer writes responses in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer builds a stdout renderer from the --format and --no-color flags.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = defaultFormat(os.Stdout)
	}
	return NewRendererWithWriter(format, c.Bool("no-color"), os.Stdout), nil
}

// NewRendererWithWriter builds a renderer over an arbitrary writer.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

func defaultFormat(f *os.File) Format {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

// Render writes data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	}
	return fmt.Errorf("unknown format: %s", r.format)
}

// RenderTUI hands data to the named TUI view.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderTable(data any) error {
	v := deref(reflect.ValueOf(data))
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		if v.Len() == 0 {
			fmt.Fprintln(r.out, "(no results)")
			return nil
		}
		writeRows(w, v)
		return w.Flush()
	}

	if v.Kind() != reflect.Struct && v.Kind() != reflect.Map {
		fmt.Fprintf(r.out, "%v\n", data)
		return nil
	}

	var pairs []pair
	flatten("", v, &pairs)
	for _, p := range pairs {
		fmt.Fprintf(w, "%s:\t%s\n", p.key, p.val)
	}
	return w.Flush()
}

// writeRows prints one header line built from the first element, then one
// line per element.
func writeRows(w io.Writer, v reflect.Value) {
	var header []string
	for i := 0; i < v.Len(); i++ {
		var pairs []pair
		flatten("", deref(v.Index(i)), &pairs)
		if i == 0 {
			for _, p := range pairs {
				header = append(header, p.key)
			}
			fmt.Fprintln(w, strings.Join(header, "\t"))
		}
		byKey := make(map[string]string, len(pairs))
		for _, p := range pairs {
			byKey[p.key] = p.val
		}
		row := make([]string, len(header))
		for j, h := range header {
			row[j] = byKey[h]
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}

type pair struct{ key, val string }

// flatten turns a struct or map into dotted key/value pairs, so a nested
// ripeness ratio shows up as ripeness_ratio.green and friends.
func flatten(prefix string, v reflect.Value, out *[]pair) {
	v = deref(v)
	switch {
	case !v.IsValid():
		if prefix != "" {
			*out = append(*out, pair{prefix, ""})
		}
	case v.Kind() == reflect.Struct && v.Type() != timeType:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := fieldName(f)
			if name == "" {
				continue
			}
			flatten(join(prefix, name), v.Field(i), out)
		}
	case v.Kind() == reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		if len(keys) == 0 && prefix != "" {
			*out = append(*out, pair{prefix, "{}"})
		}
		for _, k := range keys {
			flatten(join(prefix, fmt.Sprint(k.Interface())), v.MapIndex(k), out)
		}
	default:
		*out = append(*out, pair{prefix, scalar(v)})
	}
}

var timeType = reflect.TypeOf(time.Time{})

func scalar(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Struct:
		return v.Interface().(time.Time).Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", v.Interface())
}

// deref follows pointers and interfaces. A nil pointer yields the invalid
// Value.
func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func fieldName(f reflect.StructField) string {
	tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch tag {
	case "-":
		return ""
	case "":
		return strings.ToLower(f.Name)
	}
	return tag
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
