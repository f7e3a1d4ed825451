package transform

import (
	"testing"
)

func TestRegistry_Cast(t *testing.T) {
	registry := NewRegistry()

	cases := []struct {
		name     string
		datatype string
		value    string
		want     interface{}
		wantErr  bool
	}{
		{name: "date", datatype: "date", value: "2023-05-01", want: "2023-05-01"},
		{name: "date trims spaces", datatype: "date", value: " 2023-05-01 ", want: "2023-05-01"},
		{name: "bad date", datatype: "date", value: "01.05.2023", wantErr: true},
		{name: "number", datatype: "number", value: "12.5", want: 12.5},
		{name: "bad number", datatype: "number", value: "abc", wantErr: true},
		{name: "integer", datatype: "integer", value: "42", want: int64(42)},
		{name: "bad integer", datatype: "integer", value: "4.2", wantErr: true},
		{name: "boolean", datatype: "boolean", value: "true", want: true},
		{name: "bad boolean", datatype: "boolean", value: "maybe", wantErr: true},
		{name: "string passthrough", datatype: "string", value: "hello", want: "hello"},
		{name: "unknown datatype passthrough", datatype: "anyURI", value: "https://x", want: "https://x"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := registry.Cast(tc.datatype, tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected error casting %q as %s, got %v", tc.value, tc.datatype, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cast failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %v (%T), got %v (%T)", tc.want, tc.want, got, got)
			}
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	registry := NewRegistry()

	if _, ok := registry.Lookup("date"); !ok {
		t.Error("Expected date cast to be registered")
	}
	if _, ok := registry.Lookup("string"); ok {
		t.Error("Expected no cast for plain strings")
	}
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	registry.Register("upper", func(value string) (interface{}, error) {
		return value + "!", nil
	})

	got, err := registry.Cast("upper", "hello")
	if err != nil {
		t.Fatalf("Cast failed: %v", err)
	}
	if got != "hello!" {
		t.Errorf("Expected custom cast to apply, got %v", got)
	}
}
