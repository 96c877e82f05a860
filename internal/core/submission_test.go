package core

import (
	"slices"
	"strings"
	"testing"
)

func TestParseClist(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"plain", "name,score", []string{"name", "score"}, false},
		{"spaces after comma", "name,  score, id", []string{"name", "score", "id"}, false},
		{"leading spaces", "  name", []string{"name"}, false},
		{"trailing spaces kept", "name ,score", []string{"name ", "score"}, false},
		{"escaped comma", `last\, first,id`, []string{"last, first", "id"}, false},
		{"quotes are literal", `"a",b`, []string{`"a"`, "b"}, false},
		{"empty field", "a,,b", []string{"a", "", "b"}, false},
		{"first line only", "a,b\nc,d", []string{"a", "b"}, false},
		{"empty", "", []string{}, false},
		{"dangling escape", `a\`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClist(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnswerName(t *testing.T) {
	got := AnswerName(DefaultFileName)
	if !strings.HasPrefix(got, "_single_csv_upload_") || len(got) != len("_single_csv_upload_")+40 {
		t.Errorf("AnswerName = %q", got)
	}
	if AnswerName("a.csv") == AnswerName("b.csv") {
		t.Error("different files share an answer name")
	}
	if AnswerName("a.csv") != AnswerName("a.csv") {
		t.Error("answer name is not deterministic")
	}
}

func TestColumnFieldName(t *testing.T) {
	if got := ColumnFieldName("w1", "score"); got != "w1-score" {
		t.Errorf("ColumnFieldName = %q, want w1-score", got)
	}
}

func TestParseSubmission(t *testing.T) {
	answer := AnswerName("grades.csv")
	payload := `"` + EncodeTransport([]byte("Student,Points,Extra\n1,2,3\n")) + `"`

	tests := []struct {
		name        string
		values      map[string]string
		opts        ParseOptions
		wantErrors  []string
		wantColumns map[string]string
	}{
		{
			name:       "missing answer",
			values:     map[string]string{},
			opts:       ParseOptions{FileName: "grades.csv", Quoted: true},
			wantErrors: []string{msgNoAnswer},
		},
		{
			name:       "null answer",
			values:     map[string]string{answer: "null"},
			opts:       ParseOptions{FileName: "grades.csv", Quoted: true},
			wantErrors: []string{msgNoAnswer},
		},
		{
			name:       "unparseable answer",
			values:     map[string]string{answer: "{not json"},
			opts:       ParseOptions{FileName: "grades.csv", Quoted: true, Columns: []string{"name"}},
			wantErrors: []string{msgUnparseable},
			wantColumns: map[string]string{
				"name": "name",
			},
		},
		{
			name: "blank assignment defaults to wanted name",
			values: map[string]string{
				answer:    payload,
				"w-name":  "Student",
				"w-score": "  ",
			},
			opts: ParseOptions{FileName: "grades.csv", Instance: "w", Quoted: true, Columns: []string{"name", "score"}},
			wantColumns: map[string]string{
				"name":  "Student",
				"score": "score",
			},
		},
		{
			name: "validation finds missing columns",
			values: map[string]string{
				answer:   payload,
				"w-name": "Student",
			},
			opts: ParseOptions{FileName: "grades.csv", Instance: "w", Quoted: true, Columns: []string{"name", "score"}, ValidateColumns: true},
			wantErrors: []string{
				"The following columns are missing from the uploaded CSV file: score",
			},
		},
		{
			name: "validation finds duplicates",
			values: map[string]string{
				answer:    payload,
				"w-name":  "Points",
				"w-score": "Points",
			},
			opts:       ParseOptions{FileName: "grades.csv", Instance: "w", Quoted: true, Columns: []string{"name", "score"}, ValidateColumns: true},
			wantErrors: []string{msgDuplicateColumns},
		},
		{
			name: "validation passes",
			values: map[string]string{
				answer:    payload,
				"w-name":  "Student",
				"w-score": "Points",
			},
			opts:       ParseOptions{FileName: "grades.csv", Instance: "w", Quoted: true, Columns: []string{"name", "score"}, ValidateColumns: true},
			wantErrors: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSubmission(tt.values, tt.opts)

			wantErrors := tt.wantErrors
			if wantErrors == nil {
				wantErrors = []string{}
			}
			if !slices.Equal(got.Errors, wantErrors) {
				t.Errorf("errors = %q, want %q", got.Errors, wantErrors)
			}
			for column, want := range tt.wantColumns {
				if got.Columns[column] != want {
					t.Errorf("column %s = %q, want %q", column, got.Columns[column], want)
				}
			}
			if got.Valid() != (len(wantErrors) == 0) {
				t.Errorf("Valid() = %v", got.Valid())
			}
		})
	}
}

func TestParseSubmission_LegacyValueAndDefaultInstance(t *testing.T) {
	answer := AnswerName(DefaultFileName)
	got := ParseSubmission(map[string]string{
		answer:                       EncodeTransport([]byte("a\n")),
		ColumnFieldName(answer, "a"): "A",
	}, ParseOptions{Columns: []string{"a"}})

	if !got.Valid() || string(got.Contents) != "a\n" || got.Columns["a"] != "A" {
		t.Errorf("got %+v", got)
	}
}
