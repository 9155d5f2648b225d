package version

import "testing"

func TestEqualWildcard(t *testing.T) {
	if !Parse("2.2").Equal(Parse("2.2")) {
		t.Fatal("2.2 should equal 2.2")
	}
	if !Parse("2.*").Equal(Parse("2.2")) {
		t.Fatal("2.* should equal 2.2")
	}
	if !Parse("2.2").Equal(Parse("2.*")) {
		t.Fatal("2.2 should equal 2.*")
	}
	if !Parse("2.*.1").Equal(Parse("2.2.1")) {
		t.Fatal("2.*.1 should equal 2.2.1")
	}
	if Parse("2.*.1").Equal(Parse("2.2.2")) {
		t.Fatal("2.*.1 should not equal 2.2.2")
	}
}

func TestZeroPadding(t *testing.T) {
	if !Parse("2.2").Equal(Parse("2.2.0")) {
		t.Fatal("2.2 should equal 2.2.0 (zero padding)")
	}
	if !Parse("2.2").Equal(Parse("2.2.0.0")) {
		t.Fatal("2.2 should equal 2.2.0.0 (zero padding)")
	}
}

func TestOrdering(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.7.1", "1.7", 1},
		{"1.7.1", "1.8", -1},
		{"2.1", "2.2", -1},
	}
	for _, c := range cases {
		if got := Compare(Parse(c.a), Parse(c.b)); got != c.want {
			t.Fatalf("Compare(%s, %s) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestOrderingTotality(t *testing.T) {
	strs := []string{"1.0", "1.0.0", "1.1", "2.0", "1.0a", "1.0.*", "0.9"}
	for _, s1 := range strs {
		for _, s2 := range strs {
			v1, v2 := Parse(s1), Parse(s2)
			fwd := Compare(v1, v2)
			rev := Compare(v2, v1)
			if fwd != -rev {
				t.Fatalf("Compare(%s,%s)=%d not antisymmetric with Compare(%s,%s)=%d", s1, s2, fwd, s2, s1, rev)
			}
		}
	}
}

func TestIsCompatible(t *testing.T) {
	if !Parse("2.2").IsCompatible(Parse("2.2")) {
		t.Fatal("2.2 ~= 2.2")
	}
	if Parse("2.2").IsCompatible(Parse("3.2")) {
		t.Fatal("2.2 !~= 3.2")
	}
	if !Parse("2.2").IsCompatible(Parse("2.2.3.9")) {
		t.Fatal("2.2 ~= 2.2.3.9")
	}
}

func TestIsArbitraryEqual(t *testing.T) {
	if !Parse("foobar").IsArbitraryEqual(Parse("foobar")) {
		t.Fatal("foobar === foobar")
	}
	if Parse("foobar").IsArbitraryEqual(Parse("foobars")) {
		t.Fatal("foobar !== foobars")
	}
	if Parse("1.0").IsArbitraryEqual(Parse("1.0+downstream1")) {
		t.Fatal("1.0 !== 1.0+downstream1")
	}
}

func TestIsCaret(t *testing.T) {
	cases := []struct {
		self, other string
		want        bool
	}{
		{"1.7.1", "1.7.2", true},
		{"1.7.1", "1.20", true},
		{"1.7.1", "1.6", false},
		{"1.7.1", "2", false},
		{"1.7.1", "0.8", false},
		{"1", "1.7.2", true},
		{"1", "1.0.1", true},
		{"1", "1.6", true},
		{"1", "2", false},
		{"0", "1.7.2", false},
		{"0", "0.6", true},
		{"0", "0.1.2", true},
		{"0", "0.8", true},
		{"0.0.3", "1.7.2", false},
		{"0.0.3", "0.0.2", false},
		{"0.0.3", "0.0.4", false},
		{"0.0.3", "0.0.3.1", true},
		{"0.0.3", "0.0.3.9", true},
	}
	for _, c := range cases {
		if got := Parse(c.self).IsCaret(Parse(c.other)); got != c.want {
			t.Fatalf("%s.IsCaret(%s) = %v, want %v", c.self, c.other, got, c.want)
		}
	}
}

func TestIsTilde(t *testing.T) {
	cases := []struct {
		self, other string
		want        bool
	}{
		{"1.7.1", "1.7.2", true},
		{"1.7.1", "1.7", false},
		{"1.7.1", "1.8", false},
		{"1.7.1", "2", false},
		{"1.7.1", "0.8", false},
		{"1.2", "1.2.1", true},
		{"1.2", "1.2.9.1", true},
		{"1.2", "1.8", false},
		{"1.2", "2", false},
		{"1.2", "1.3", false},
		{"2", "2.1", true},
		{"2", "2.9.1", true},
		{"2", "1.8", false},
		{"2", "3", false},
		{"2", "4", false},
	}
	for _, c := range cases {
		if got := Parse(c.self).IsTilde(Parse(c.other)); got != c.want {
			t.Fatalf("%s.IsTilde(%s) = %v, want %v", c.self, c.other, got, c.want)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	v := Parse("2.2.3rc2")
	b, err := v.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2.2.3rc2"` {
		t.Fatalf("got %s", b)
	}
	var v2 Version
	if err := v2.UnmarshalJSON(b); err != nil {
		t.Fatal(err)
	}
	if !v.Equal(v2) {
		t.Fatalf("round trip mismatch: %s != %s", v, v2)
	}
}
