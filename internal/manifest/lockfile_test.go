package manifest

import "testing"

func TestDetectLockDialectPoetry(t *testing.T) {
	body := `
[[package]]
name = "packaging"
version = "24.2"

[[package]]
name = "requests"
version = "2.31.0"
`
	if detectLockDialect(body) != lockPoetry {
		t.Fatalf("expected poetry dialect")
	}
}

func TestDetectLockDialectNative(t *testing.T) {
	body := `
[[distribution]]
name = "packaging"
version = "24.2"
`
	if detectLockDialect(body) != lockNative {
		t.Fatalf("expected native dialect")
	}
}

func TestDetectLockDialectJSON(t *testing.T) {
	body := `{"_meta": {}, "default": {"requests": {"version": "==2.31.0"}}}`
	if detectLockDialect(body) != lockJSON {
		t.Fatalf("expected json dialect")
	}
}

func TestDetectLockDialectRequirementsStyle(t *testing.T) {
	body := `
opentelemetry-api==1.24.0
    # via
    #   apache-airflow
opentelemetry-exporter-otlp==1.24.0
    # via apache-airflow
apache-airflow
`
	if detectLockDialect(body) != lockRequirements {
		t.Fatalf("expected requirements-style dialect")
	}
}

func TestFromLockBodyUv(t *testing.T) {
	body := `
opentelemetry-api==1.24.0
    # via
    #   apache-airflow
    #   opentelemetry-exporter-otlp-proto-grpc
    #   opentelemetry-exporter-otlp-proto-http
opentelemetry-exporter-otlp==1.24.0
    # via apache-airflow
apache-airflow
`
	cs, err := FromLockBody(body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.Len() != 3 {
		t.Fatalf("expected 3 deps, got %d", cs.Len())
	}
	if _, ok := cs.Get("apache_airflow"); !ok {
		t.Fatalf("expected apache_airflow in constraint set")
	}
}

func TestFromLockBodyPoetry(t *testing.T) {
	body := `
[[package]]
name = "packaging"
version = "24.2"

[[package]]
name = "requests"
version = "2.31.0"
`
	cs, err := FromLockBody(body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := cs.Get("requests")
	if !ok || d.Operators[0] != "==" || d.Versions[0].String() != "2.31.0" {
		t.Fatalf("got %+v", d)
	}
}

func TestFromLockBodyJSON(t *testing.T) {
	body := `{
  "_meta": {"hash": {}},
  "default": {
    "requests": {"version": "==2.31.0"},
    "six": {"version": "==1.16.0"}
  },
  "develop": {
    "pytest": {"version": "==7.0.0"}
  }
}`
	cs, err := FromLockBody(body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.Len() != 2 {
		t.Fatalf("expected default-only 2 deps, got %d", cs.Len())
	}
	if _, ok := cs.Get("pytest"); ok {
		t.Fatalf("did not expect develop group without options")
	}

	cs2, err := FromLockBody(body, []string{"develop"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs2.Len() != 3 {
		t.Fatalf("expected 3 deps with develop option, got %d", cs2.Len())
	}
}
