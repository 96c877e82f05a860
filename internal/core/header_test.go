package core

import (
	"errors"
	"slices"
	"testing"
)

func TestExtractHeaderRow(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "BOM and data rows",
			input: "\uFEFFname,score\n1,2\n3,4",
			want:  []string{"name", "score"},
		},
		{
			name:  "no trailing newline",
			input: "a,b,c",
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "quoted field with comma",
			input: "\"last, first\",id\n",
			want:  []string{"last, first", "id"},
		},
		{
			name:  "CRLF line endings",
			input: "x,y\r\n1,2\r\n",
			want:  []string{"x", "y"},
		},
		{
			name:  "malformed data row ignored",
			input: "a,b\n\"unterminated,1\n",
			want:  []string{"a", "b"},
		},
		{
			name:  "ragged rows ignored",
			input: "a,b\n1,2,3\n",
			want:  []string{"a", "b"},
		},
		{
			name:  "empty text",
			input: "",
			want:  []string{},
		},
		{
			name:    "unterminated quote in header",
			input:   "\"name,score\n1,2",
			wantErr: true,
		},
		{
			name:    "bare quote in header",
			input:   "na\"me,score\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractHeaderRow(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrHeaderParse) {
					t.Fatalf("err = %v, want ErrHeaderParse", err)
				}
				var hpe *HeaderParseError
				if !errors.As(err, &hpe) || hpe.Line < 1 {
					t.Errorf("HeaderParseError line = %v", hpe)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeaderFromContents(t *testing.T) {
	header, err := headerFromContents([]byte{'a', 0x00, ',', 'b'})
	if err != nil || header != nil {
		t.Errorf("binary content: header=%v err=%v, want nil/nil", header, err)
	}

	_, err = headerFromContents([]byte{0xFF, ',', 'b'})
	if !errors.Is(err, ErrInvalidText) {
		t.Errorf("invalid utf-8: err = %v, want ErrInvalidText", err)
	}
}
