package web

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvsubmit/internal/core"
)

func render(t *testing.T, snap core.Snapshot) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, widgetView(snap).Render(context.Background(), &buf))
	return buf.String()
}

func TestWidgetView(t *testing.T) {
	snap := core.Snapshot{
		ID:      "q1",
		Mode:    core.ModeMulti,
		Version: 3,
		Files: []core.FileState{
			{Name: "a.csv", Status: core.StatusPresent, Size: 4},
			{Name: "b.csv", Status: core.StatusFailed, Error: "timeout"},
			{Name: "c.csv", Status: core.StatusPending},
		},
		FieldValue:  `[{"name":"a.csv"}]`,
		UnloadCheck: true,
		Warnings:    []string{"<script>alert(1)</script>"},
	}
	html := render(t, snap)

	assert.Contains(t, html, `data-version="3"`)
	assert.Contains(t, html, `href="/api/widgets/q1/files/a.csv/download"`)
	assert.Contains(t, html, "Could not load")
	assert.Contains(t, html, "timeout")
	assert.Contains(t, html, "Loading...")
	assert.Contains(t, html, `name="q1"`)
	assert.Contains(t, html, `data-unload-check="true"`)
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, `"name":"a.csv"`, "field value is escaped")
}

func TestWidgetView_SingleColumns(t *testing.T) {
	snap := core.Snapshot{
		ID:       "s",
		Mode:     core.ModeSingle,
		FileName: "grades.csv",
		Header:   []string{"Name", "Score"},
		Columns: []core.ColumnField{
			{Column: "name", FieldName: "s-name", Assigned: "Name"},
			{Column: "id", FieldName: "s-id", Assigned: "Gone"},
		},
	}
	html := render(t, snap)

	assert.Contains(t, html, `name="`+core.AnswerName("grades.csv")+`"`)
	assert.Contains(t, html, `<select name="s-name">`)
	assert.Contains(t, html, `<option value="Name" selected>`)
	assert.Contains(t, html, `<option value="Gone" selected>`, "stale assignment stays visible")
	assert.NotContains(t, html, "data-unload-check")
}

func TestColumnChoices(t *testing.T) {
	header := []string{"a", "b"}
	assert.Equal(t, header, columnChoices(header, ""))
	assert.Equal(t, header, columnChoices(header, "b"))
	assert.Equal(t, []string{"z", "a", "b"}, columnChoices(header, "z"))
}

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	msg := core.MapError(core.ErrFileTooLarge)
	require.NoError(t, errorAlert(msg).Render(context.Background(), &buf))

	assert.Contains(t, buf.String(), `role="alert"`)
	assert.Contains(t, buf.String(), msg.Code)
}
