package model

import (
	"errors"
	"testing"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"GET", MethodGet, false},
		{"post", MethodPost, false},
		{"Put", MethodPut, false},
		{"PATCH", MethodPatch, false},
		{"DELETE", MethodDelete, false},
		{"TRACE", "", true},
		{"OPTIONS", "", true},
		{"HEAD", "", true},
		{"CONNECT", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMethodNotAllowed) {
					t.Fatalf("ParseMethod(%q) error = %v, want ErrMethodNotAllowed", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMethod(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMethod(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMethod_HasBody(t *testing.T) {
	for m, want := range map[Method]bool{
		MethodGet:    false,
		MethodDelete: false,
		MethodPost:   true,
		MethodPut:    true,
		MethodPatch:  true,
	} {
		if got := m.HasBody(); got != want {
			t.Errorf("%s.HasBody() = %v, want %v", m, got, want)
		}
	}
}

func TestBodyKind_String(t *testing.T) {
	for k, want := range map[BodyKind]string{
		BodyAbsent: "absent",
		BodyJSON:   "json",
		BodyText:   "text",
		BodyHex:    "hex",
	} {
		if got := k.String(); got != want {
			t.Errorf("BodyKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
