package marker

import "testing"

func linuxCPython() Facts {
	return Facts{
		OSName:                  "posix",
		Platform:                "linux",
		Machine:                 "x86_64",
		ImplementationName:      "cpython",
		ImplementationRelease:   "6.8.0",
		System:                  "Linux",
		ShortVersion:            "3.11",
		FullVersion:             "3.11.4",
		ShortImplementationName: "CPython",
	}
}

func TestEvaluateEmptyMarkerIsTrue(t *testing.T) {
	ok, err := Evaluate("", linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateStripsLeadingSemicolon(t *testing.T) {
	ok, err := Evaluate(`; python_version >= "3.8"`, linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateStringComparison(t *testing.T) {
	ok, err := Evaluate(`sys_platform == "linux"`, linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}

	ok, err = Evaluate(`sys_platform == "win32"`, linuxCPython())
	if err != nil || ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateVersionComparison(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{`python_version >= "3.8"`, true},
		{`python_version >= "3.12"`, false},
		{`python_version < "3.8"`, false},
		{`python_full_version == "3.11.4"`, true},
		{`python_full_version != "3.11.4"`, false},
	}
	for _, c := range cases {
		got, err := Evaluate(c.expr, linuxCPython())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.expr, err)
		}
		if got != c.want {
			t.Fatalf("%s: got %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvaluateAndOr(t *testing.T) {
	ok, err := Evaluate(`sys_platform == "linux" and python_version >= "3.8"`, linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}

	ok, err = Evaluate(`sys_platform == "win32" or python_version >= "3.8"`, linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}

	ok, err = Evaluate(`sys_platform == "win32" and python_version >= "3.8"`, linuxCPython())
	if err != nil || ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateParentheses(t *testing.T) {
	ok, err := Evaluate(`(sys_platform == "win32" or sys_platform == "linux") and python_version >= "3.8"`, linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateInAndNotIn(t *testing.T) {
	ok, err := Evaluate(`"lin" in sys_platform`, linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}

	ok, err = Evaluate(`"win" not in sys_platform`, linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateUnknownFactNameIsParseError(t *testing.T) {
	_, err := Evaluate(`os_family == "nt"`, linuxCPython())
	if err == nil {
		t.Fatal("expected an error for an unknown fact name")
	}
}

func TestEvaluateMissingOperatorIsParseError(t *testing.T) {
	_, err := Evaluate(`sys_platform "linux"`, linuxCPython())
	if err == nil {
		t.Fatal("expected an error for a missing comparison operator")
	}
}

func TestEvaluateCaretAndTildeAgainstVersionFacts(t *testing.T) {
	ok, err := Evaluate(`python_version ^ "3.11"`, linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}

	ok, err = Evaluate(`python_version ~ "3.11.0"`, linuxCPython())
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
}
