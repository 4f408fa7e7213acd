package settings

import (
	"encoding/json"
	"testing"
)

func TestValueRoundTrip(t *testing.T) {
	// WHAT: unmarshal → marshal must reproduce the input for every shape a
	// settings payload can contain, including JSON the schema knows nothing
	// about.
	cases := []string{
		`true`,
		`false`,
		`"enabled"`,
		`"some free text"`,
		`{"nested":{"a":1,"b":[true,"x"]}}`,
		`[1,2,3]`,
		`42`,
		`null`,
	}
	for _, in := range cases {
		var v Value
		if err := json.Unmarshal([]byte(in), &v); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", in, err)
		}
		if string(out) != in {
			t.Errorf("round trip %s = %s", in, out)
		}
	}
}

func TestValueEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"bool same", Bool(true), Bool(true), true},
		{"bool differ", Bool(true), Bool(false), false},
		{"choice same", Choice("enabled"), Choice("enabled"), true},
		{"text vs choice same string", Text("enabled"), Choice("enabled"), true},
		{"choice differ", Choice("enabled"), Choice("disabled"), false},
		{"bool vs text", Bool(true), Text("true"), false},
		{"raw same", Raw([]byte(`{"a": 1}`)), Raw([]byte(`{"a":1}`)), true},
		{"raw differ", Raw([]byte(`{"a":1}`)), Raw([]byte(`{"a":2}`)), false},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: Equal = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValueUnmarshalClassifies(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`true`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Kind() != KindBool {
		t.Errorf("true → kind %v, want KindBool", v.Kind())
	}

	if err := json.Unmarshal([]byte(`"hello"`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Kind() != KindText {
		t.Errorf(`"hello" → kind %v, want KindText`, v.Kind())
	}

	if err := json.Unmarshal([]byte(`{"x":1}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Kind() != KindRaw {
		t.Errorf("object → kind %v, want KindRaw", v.Kind())
	}
}

func TestCompatible(t *testing.T) {
	if !Compatible(TypeToggle, Bool(true)) {
		t.Error("toggle should accept bool")
	}
	if Compatible(TypeToggle, Text("on")) {
		t.Error("toggle should reject string")
	}
	if !Compatible(TypeSelect, Choice("weekly")) {
		t.Error("select should accept choice")
	}
	if !Compatible(TypeText, Text("hello")) {
		t.Error("text should accept string")
	}
	if Compatible(TypeSelect, Raw([]byte(`{"a":1}`))) {
		t.Error("select should reject raw JSON")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("ad-personalization"); got != "Ad Personalization" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := DisplayName("web-and-app-activity"); got != "Web And App Activity" {
		t.Errorf("DisplayName = %q", got)
	}
}

func TestInferType(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Bool(true), TypeToggle},
		{Text("enabled"), TypeToggle}, // toggle vocabulary
		{Choice("weekly"), TypeSelect},
		{Raw([]byte(`{"a":1}`)), TypeText},
	}
	for _, tc := range cases {
		if got := InferType(tc.v); got != tc.want {
			t.Errorf("InferType(%v) = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestToggleCoercions(t *testing.T) {
	if v := ToggleToChoice(true); !Equal(v, Choice("enabled")) {
		t.Errorf("ToggleToChoice(true) = %v", v)
	}
	if v := ToggleToChoice(false); !Equal(v, Choice("disabled")) {
		t.Errorf("ToggleToChoice(false) = %v", v)
	}
	if v := ChoiceToToggle("Enabled"); !Equal(v, Bool(true)) {
		t.Errorf(`ChoiceToToggle("Enabled") = %v`, v)
	}
	if v := ChoiceToToggle("off"); !Equal(v, Bool(false)) {
		t.Errorf(`ChoiceToToggle("off") = %v`, v)
	}
}
