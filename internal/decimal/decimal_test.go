package decimal

import "testing"

func TestNewDec8ScientificNotation(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0E-8", "0.00000000"},
		{"1.5E-8", "0.00000002"},
		{"1.23E-4", "0.00012300"},
		{"100", "100.00000000"},
		{"", "0.00000000"},
	}
	for _, c := range cases {
		got := NewDec8(c.in).String()
		if got != c.want {
			t.Errorf("NewDec8(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNewDec8RoundTripScale(t *testing.T) {
	a := NewDec8("1.23E-4")
	b := a.MulInt64(10_000)
	want := NewDec8("1.23")
	if b.String() != want.String() {
		t.Errorf("1.23E-4 * 10000 = %s, want %s", b.String(), want.String())
	}
}

func TestNewDec8InvalidInputDefaultsZero(t *testing.T) {
	got := NewDec8("not-a-number")
	if !got.IsZero() {
		t.Errorf("expected zero value for unparseable input, got %s", got.String())
	}
}

func TestWeiToDec18(t *testing.T) {
	wei, _ := parse("1500000000000000000") // 1.5 * 10^18
	got := WeiToDec18(wei)
	want := "1.500000000000000000"
	if got.String() != want {
		t.Fatalf("WeiToDec18(1.5e18) = %s, want %s", got.String(), want)
	}
}

func TestDec8MarshalJSONIsString(t *testing.T) {
	v := NewDec8("3.14")
	b, err := v.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"3.14000000"` {
		t.Errorf("got %s, want quoted fixed string", b)
	}
}
