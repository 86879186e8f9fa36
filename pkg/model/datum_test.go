package model

import "testing"

func TestDatumIsDefault(t *testing.T) {
	cases := []struct {
		name string
		d    Datum
		want bool
	}{
		{"zero int", IntDatum(0), true},
		{"nonzero int", IntDatum(1), false},
		{"zero real", RealDatum(0), true},
		{"nonzero real", RealDatum(0.5), false},
		{"false bool", BoolDatum(false), true},
		{"true bool", BoolDatum(true), false},
		{"empty string", StringDatum(""), true},
		{"nonempty string", StringDatum("x"), false},
	}
	for _, c := range cases {
		if got := c.d.IsDefault(); got != c.want {
			t.Errorf("%s: IsDefault() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDatumFromJSONRoundTrip(t *testing.T) {
	cases := []struct {
		typ Type
		raw string
	}{
		{TypeInteger, "42"},
		{TypeReal, "3.5"},
		{TypeBoolean, "true"},
		{TypeString, `"hello"`},
		{TypeUUID, `"11111111-1111-1111-1111-111111111111"`},
	}
	for _, c := range cases {
		d, err := FromJSON(c.typ, []byte(c.raw))
		if err != nil {
			t.Fatalf("FromJSON(%v, %s): %v", c.typ, c.raw, err)
		}
		out, err := d.ToJSON()
		if err != nil {
			t.Fatalf("ToJSON: %v", err)
		}
		if string(out) != c.raw {
			t.Errorf("round trip %s: got %s", c.raw, out)
		}
	}
}

func TestDatumFromJSONRejectsWrongType(t *testing.T) {
	if _, err := FromJSON(TypeInteger, []byte(`"not a number"`)); err == nil {
		t.Error("expected an error parsing a string as an integer datum")
	}
}
