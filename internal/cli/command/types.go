package command

import (
	"fmt"
	"net/url"
	"time"

	"github.com/yndnr/tally-go/internal/cli/output"
)

const timeLayout = "2006-01-02 15:04"

type entryView struct {
	Date  string `json:"date" yaml:"date"`
	Count int64  `json:"count" yaml:"count"`
}

type counterView struct {
	ID        string      `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
	Total     int64       `json:"total" yaml:"total"`
	Entries   []entryView `json:"entries" yaml:"entries"`
}

// Table lists the counter's entries by date.
func (v counterView) Table(bool) *output.Table {
	t := &output.Table{Headers: []string{"DATE", "COUNT"}}
	for _, e := range v.Entries {
		t.AddRow(e.Date, e.Count)
	}
	t.Footer = fmt.Sprintf("%s (%s)  Total: %d", v.Name, v.ID, v.Total)
	return t
}

func (v counterView) lastDate() string {
	if len(v.Entries) == 0 {
		return ""
	}
	return v.Entries[len(v.Entries)-1].Date
}

type counterListView struct {
	Counters []counterView `json:"counters" yaml:"counters"`
}

// Table lists counters in creation order.
func (l counterListView) Table(wide bool) *output.Table {
	t := &output.Table{Headers: []string{"ID", "NAME", "TOTAL", "DAYS"}}
	if wide {
		t.Headers = append(t.Headers, "LAST DATE", "CREATED")
	}
	for _, c := range l.Counters {
		if wide {
			t.AddRow(c.ID, c.Name, c.Total, len(c.Entries), c.lastDate(), c.CreatedAt.Local().Format(timeLayout))
			continue
		}
		t.AddRow(c.ID, c.Name, c.Total, len(c.Entries))
	}
	t.Footer = fmt.Sprintf("Total: %d counters", len(l.Counters))
	return t
}

type accountView struct {
	Token     string        `json:"token" yaml:"token"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	Counters  []counterView `json:"counters" yaml:"counters"`
}

// Table shows the token, then the counters.
func (a accountView) Table(wide bool) *output.Table {
	t := counterListView{Counters: a.Counters}.Table(wide)
	t.Footer = fmt.Sprintf("Account %s, created %s, %d counters",
		a.Token, a.CreatedAt.Local().Format(timeLayout), len(a.Counters))
	if len(a.Counters) == 0 {
		t.Headers = nil
	}
	return t
}

type healthView struct {
	Server string `json:"server" yaml:"server"`
	Health string `json:"health" yaml:"health"`
	Ready  string `json:"ready" yaml:"ready"`
}

func (h healthView) Table(bool) *output.Table {
	t := &output.Table{Headers: []string{"SERVER", "HEALTH", "READY"}}
	t.AddRow(h.Server, h.Health, h.Ready)
	return t
}

type versionView struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

func (v versionView) Table(bool) *output.Table {
	t := &output.Table{Headers: []string{"VERSION", "COMMIT", "BUILT", "GO", "PLATFORM"}}
	t.AddRow(v.Version, v.Commit, v.BuildTime, v.GoVersion, v.Platform)
	return t
}

// accountPath escapes the token into /accounts/{token}.
func accountPath(token string, rest ...string) string {
	p := "/accounts/" + url.PathEscape(token)
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}
