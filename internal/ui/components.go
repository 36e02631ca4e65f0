// Package ui renders the server's HTML pages as templ components.
package ui

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
)

// JobListItem is one row of the job table.
type JobListItem struct {
	ID           string
	State        string
	Source       string
	Progress     string
	Size         string
	OpaquePixels int
	StartTime    time.Time
	EndTime      *time.Time
	Error        string
	HasResult    bool
}

// KitListItem is one saved brand kit with its swatch colours.
type KitListItem struct {
	Name   string
	Colors []string
	Fonts  []string
}

const pageStyle = `body { font-family: system-ui, sans-serif; margin: 2rem; background: #111; color: #eee; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { padding: .4rem .8rem; border-bottom: 1px solid #333; text-align: left; }
.state-completed { color: #6c6; } .state-failed { color: #e66; } .state-running { color: #6af; }
.swatch { display: inline-block; width: 1.2rem; height: 1.2rem; margin-right: .2rem; vertical-align: middle; }
a { color: #9cf; }`

// htmlWriter keeps the first write error so components read top to bottom.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(s string) {
	if hw.err == nil {
		_, hw.err = io.WriteString(hw.w, s)
	}
}

func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) href(s string) {
	hw.raw(templ.EscapeString(string(templ.URL(s))))
}

func (hw *htmlWriter) render(ctx context.Context, c templ.Component) {
	if hw.err == nil {
		hw.err = c.Render(ctx, hw.w)
	}
}

// Page wraps body components in the studio's HTML document.
func Page(title string, body ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>")
		hw.text(title)
		hw.raw("</title>\n<style>\n" + pageStyle + "\n</style>\n</head>\n<body>\n")
		for _, c := range body {
			hw.render(ctx, c)
		}
		hw.raw("</body>\n</html>\n")
		return hw.err
	})
}

// JobList renders the cleanup job table.
func JobList(items []JobListItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<h1>Cleanup jobs</h1>\n")
		if len(items) == 0 {
			hw.raw("<p>No jobs yet. POST to /api/v1/jobs to start one.</p>\n")
			return hw.err
		}

		hw.raw("<table>\n<tr><th>ID</th><th>State</th><th>Source</th><th>Stages</th><th>Size</th><th>Opaque px</th><th>Started</th><th>Finished</th><th></th></tr>\n")
		for _, item := range items {
			hw.raw("<tr>\n<td><a href=\"")
			hw.href("/api/v1/jobs/" + item.ID + "/status")
			hw.raw("\">")
			hw.text(item.ID)
			hw.raw("</a></td>\n<td class=\"state-")
			hw.text(item.State)
			hw.raw("\">")
			hw.text(item.State)
			if item.Error != "" {
				hw.raw(" (")
				hw.text(item.Error)
				hw.raw(")")
			}
			hw.raw("</td>\n<td>")
			hw.text(item.Source)
			hw.raw("</td>\n<td>")
			hw.text(item.Progress)
			hw.raw("</td>\n<td>")
			hw.text(item.Size)
			hw.raw("</td>\n<td>")
			hw.text(strconv.Itoa(item.OpaquePixels))
			hw.raw("</td>\n<td>")
			hw.text(item.StartTime.Format(time.RFC3339))
			hw.raw("</td>\n<td>")
			if item.EndTime != nil {
				hw.text(item.EndTime.Format(time.RFC3339))
			}
			hw.raw("</td>\n<td>")
			if item.HasResult {
				hw.raw("<a href=\"")
				hw.href("/api/v1/jobs/" + item.ID + "/result.png")
				hw.raw("\">result.png</a>")
			}
			hw.raw("</td>\n</tr>\n")
		}
		hw.raw("</table>\n")
		return hw.err
	})
}

// KitList renders saved brand kits as swatch rows.
func KitList(kits []KitListItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<h1>Brand kits</h1>\n")
		if len(kits) == 0 {
			hw.raw("<p>No brand kits saved.</p>\n")
			return hw.err
		}
		for _, kit := range kits {
			hw.raw("<p><strong>")
			hw.text(kit.Name)
			hw.raw("</strong> ")
			for _, hex := range kit.Colors {
				hw.raw("<span class=\"swatch\" style=\"background: ")
				hw.text(hex)
				hw.raw("\" title=\"")
				hw.text(hex)
				hw.raw("\"></span>")
			}
			for _, font := range kit.Fonts {
				hw.raw(" <em>")
				hw.text(font)
				hw.raw("</em>")
			}
			hw.raw("</p>\n")
		}
		return hw.err
	})
}

// Index is the studio's landing page.
func Index(jobs []JobListItem, kits []KitListItem) templ.Component {
	return Page("Flyer Studio", JobList(jobs), KitList(kits))
}
