package core

import (
	"bytes"
	"testing"
)

func TestSingleValue_Serialize(t *testing.T) {
	one := []SubmittedFile{{Name: "f", Contents: []byte("a,b")}}
	two := append(one, SubmittedFile{Name: "g", Contents: []byte("c")})

	tests := []struct {
		name    string
		s       SingleValue
		files   []SubmittedFile
		want    string
		wantErr bool
	}{
		{"legacy empty", SingleValue{}, nil, "", false},
		{"quoted empty", SingleValue{Quoted: true}, nil, "null", false},
		{"legacy one", SingleValue{}, one, "YSxi", false},
		{"quoted one", SingleValue{Quoted: true}, one, `"YSxi"`, false},
		{"two files", SingleValue{}, two, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.s.Serialize(tt.files)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSingleValue(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		quoted  bool
		want    []byte
		wantOK  bool
		wantErr bool
	}{
		{"legacy absent", "", false, nil, false, false},
		{"legacy present", "YSxi", false, []byte("a,b"), true, false},
		{"quoted null", "null", true, nil, false, false},
		{"quoted present", `"YSxi"`, true, []byte("a,b"), true, false},
		{"quoted garbage", `{"x":1}`, true, nil, false, true},
		{"bad base64", "!!", false, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseSingleValue(tt.value, tt.quoted)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK || !bytes.Equal(got, tt.want) {
				t.Errorf("got %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStructured_RoundTrip(t *testing.T) {
	files := []SubmittedFile{
		{Name: "z.csv", Contents: []byte("1")},
		{Name: "a.csv", Contents: []byte{0x00, 0xFF}},
	}

	value, err := Structured{}.Serialize(files)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	want := `[{"name":"z.csv","contents":"MQ=="},{"name":"a.csv","contents":"AP8="}]`
	if value != want {
		t.Errorf("value = %s, want %s", value, want)
	}

	back, err := ParseStructured(value)
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if len(back) != 2 || back[0].Name != "z.csv" || !bytes.Equal(back[1].Contents, files[1].Contents) {
		t.Errorf("round trip = %+v", back)
	}

	if empty, _ := (Structured{}).Serialize(nil); empty != "[]" {
		t.Errorf("empty store = %s, want []", empty)
	}
}

func TestHiddenField(t *testing.T) {
	var f HiddenField
	f.SetValue("x")
	f.EnableUnloadCheck()
	f.EnableUnloadCheck()

	if f.Value() != "x" || !f.UnloadCheckEnabled() {
		t.Errorf("field = %q unload=%v", f.Value(), f.UnloadCheckEnabled())
	}
}
