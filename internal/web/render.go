package web

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvsubmit/internal/core"
)

// answerFieldName is the form field name of a widget's hidden value.
func answerFieldName(snap core.Snapshot) string {
	if snap.Mode == core.ModeSingle {
		return core.AnswerName(snap.FileName)
	}
	return snap.ID
}

func downloadURL(widgetID, name string) string {
	return "/api/widgets/" + url.PathEscape(widgetID) + "/files/" + url.PathEscape(name) + "/download"
}

// writer collects the first write error so components read linearly.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(parts ...string) {
	for _, p := range parts {
		if w.err != nil {
			return
		}
		_, w.err = io.WriteString(w.w, p)
	}
}

func esc(s string) string { return templ.EscapeString(s) }

// widgetPage renders a full document around widgetView.
func widgetPage(snap core.Snapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`,
			esc(pageTitle(snap)), `</title></head><body>`)
		if out.err != nil {
			return out.err
		}
		if err := widgetView(snap).Render(ctx, w); err != nil {
			return err
		}
		out.raw(`</body></html>`)
		return out.err
	})
}

func pageTitle(snap core.Snapshot) string {
	if snap.Mode == core.ModeSingle {
		return "Upload " + snap.FileName
	}
	return "Upload files"
}

// widgetView renders the widget: file list with status, warnings, column
// pickers and the hidden answer field. It is also the HTMX swap target.
func widgetView(snap core.Snapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<div class="csv-submit" id="widget-`, esc(snap.ID), `" data-version="`,
			fmt.Sprint(snap.Version), `" data-mode="`, esc(string(snap.Mode)), `">`)

		out.raw(`<ul class="files">`)
		for _, f := range snap.Files {
			out.raw(`<li class="file status-`, esc(f.Status.String()), `">`,
				`<span class="name">`, esc(f.Name), `</span> `,
				`<span class="status">`, esc(statusLabel(f.Status)), `</span>`)
			if f.Status == core.StatusPresent {
				out.raw(` <a class="download" href="`, esc(downloadURL(snap.ID, f.Name)), `" download="`,
					esc(f.Name), `">Download</a>`)
			}
			if f.Error != "" {
				out.raw(` <span class="error">`, esc(f.Error), `</span>`)
			}
			out.raw(`</li>`)
		}
		out.raw(`</ul>`)

		if len(snap.Warnings) > 0 {
			out.raw(`<div class="warnings" role="alert">`)
			for _, msg := range snap.Warnings {
				out.raw(`<p class="warning">`, esc(msg), `</p>`)
			}
			out.raw(`</div>`)
		}

		if snap.HeaderError != "" {
			out.raw(`<p class="header-error">`, esc(snap.HeaderError), `</p>`)
		}

		if len(snap.Columns) > 0 {
			out.raw(`<fieldset class="columns"><legend>Match columns</legend>`)
			for _, col := range snap.Columns {
				out.raw(`<label>`, esc(col.Column), ` <select name="`, esc(col.FieldName), `">`)
				out.raw(`<option value="">Choose a column</option>`)
				for _, h := range columnChoices(snap.Header, col.Assigned) {
					selected := ""
					if h == col.Assigned {
						selected = ` selected`
					}
					out.raw(`<option value="`, esc(h), `"`, selected, `>`, esc(h), `</option>`)
				}
				out.raw(`</select></label>`)
			}
			out.raw(`</fieldset>`)
		}

		out.raw(`<input type="hidden" name="`, esc(answerFieldName(snap)), `" value="`, esc(snap.FieldValue), `"`)
		if snap.UnloadCheck {
			out.raw(` data-unload-check="true"`)
		}
		out.raw(`></div>`)
		return out.err
	})
}

// columnChoices lists the header names, keeping a saved assignment that is
// no longer in the header so it is not silently lost.
func columnChoices(header []string, assigned string) []string {
	if assigned == "" {
		return header
	}
	for _, h := range header {
		if h == assigned {
			return header
		}
	}
	return append([]string{assigned}, header...)
}

func statusLabel(s core.FetchStatus) string {
	switch s {
	case core.StatusPending:
		return "Loading..."
	case core.StatusFailed:
		return "Could not load"
	case core.StatusPresent:
		return "Uploaded"
	default:
		return "Not uploaded"
	}
}

// errorAlert renders a user message as an alert fragment.
func errorAlert(msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		out.raw(`<div class="alert alert-error" role="alert"><p>`, esc(msg.Message), `</p>`)
		if msg.Action != "" {
			out.raw(`<p class="action">`, esc(msg.Action), `</p>`)
		}
		out.raw(`<p class="code">`, esc(strings.TrimSpace(msg.Code)), `</p></div>`)
		return out.err
	})
}
