package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format Format
		wide   bool
	}{
		{FormatJSON, false},
		{FormatYAML, false},
		{FormatTable, false},
		{FormatTable, true},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f := NewFormatter(tt.format, tt.wide)
			switch tt.format {
			case FormatJSON:
				if _, ok := f.(*JSONFormatter); !ok {
					t.Errorf("NewFormatter(%q) = %T", tt.format, f)
				}
			case FormatYAML:
				if _, ok := f.(*YAMLFormatter); !ok {
					t.Errorf("NewFormatter(%q) = %T", tt.format, f)
				}
			default:
				tf, ok := f.(*TableFormatter)
				if !ok {
					t.Fatalf("NewFormatter(%q) = %T, want table", tt.format, f)
				}
				if tf.Wide != tt.wide {
					t.Errorf("Wide = %v, want %v", tf.Wide, tt.wide)
				}
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type sample struct {
	ID    string `json:"id" yaml:"id"`
	Total int64  `json:"total" yaml:"total"`
}

func (s sample) Table(wide bool) *Table {
	t := &Table{Headers: []string{"ID", "TOTAL"}}
	if wide {
		t.Headers = append(t.Headers, "EXTRA")
		t.AddRow(s.ID, s.Total, "x")
		return t
	}
	t.AddRow(s.ID, s.Total)
	return t
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, sample{ID: "visits", Total: 3}); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"id\": \"visits\",\n  \"total\": 3\n}\n"
	if buf.String() != want {
		t.Errorf("JSON = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := (&JSONFormatter{}).Format(&buf, sample{ID: "q&a"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"q&a"`) {
		t.Errorf("JSON escaped the name: %q", buf.String())
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"counters": []sample{{ID: "a", Total: 1}, {ID: "b", Total: 2}}}
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatal(err)
	}
	want := "counters:\n  - id: a\n    total: 1\n  - id: b\n    total: 2\n"
	if buf.String() != want {
		t.Errorf("YAML =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestTableFormatter_Tabular(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, sample{ID: "visits", Total: 3}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want header and one row", lines)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "TOTAL") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "visits") || !strings.HasSuffix(lines[1], "3") {
		t.Errorf("row = %q", lines[1])
	}

	buf.Reset()
	if err := (&TableFormatter{Wide: true}).Format(&buf, sample{ID: "visits", Total: 3}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "EXTRA") {
		t.Errorf("wide table = %q, want EXTRA column", buf.String())
	}
}

func TestTableFormatter_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{NoHeaders: true}
	if err := f.Format(&buf, sample{ID: "visits", Total: 3}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "TOTAL") {
		t.Errorf("headers printed with NoHeaders: %q", buf.String())
	}
}

func TestTableFormatter_FallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Errorf("fallback = %q", buf.String())
	}

	buf.Reset()
	if err := (&TableFormatter{}).Format(&buf, nil); err != nil || buf.Len() != 0 {
		t.Errorf("nil data wrote %q, err %v", buf.String(), err)
	}
}

func TestTable_Render(t *testing.T) {
	tbl := &Table{Headers: []string{"DATE", "COUNT"}, Footer: "Total: 5"}
	tbl.AddRow("2026-01-01", 2)
	tbl.AddRow("2026-01-02", 3)
	tbl.AddRow("", "tab\there")

	var buf bytes.Buffer
	if err := tbl.Render(&buf); err != nil {
		t.Fatal(err)
	}
	want := "DATE        COUNT\n" +
		"2026-01-01  2\n" +
		"2026-01-02  3\n" +
		"-           tab here\n" +
		"\nTotal: 5\n"
	if buf.String() != want {
		t.Errorf("Render() =\n%q\nwant\n%q", buf.String(), want)
	}
}
