package scanner

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/flexatone/fetter/internal/ferrors"
	"github.com/flexatone/fetter/internal/marker"
)

// pyMarkerFactsScript prints the nine named interpreter facts in a fixed
// order, one per line, via a single "-c" invocation of the interpreter.
const pyMarkerFactsScript = `import os,sys,platform;print(os.name);print(sys.platform);print(platform.machine());print(sys.implementation.name);print(platform.release());print(platform.system());print(f"{sys.version_info[0]}.{sys.version_info[1]}");print(platform.python_version());print(platform.python_implementation())`

// LoadFacts invokes exe with the fixed facts script and parses its nine
// lines of output into Facts, in the print order above.
func LoadFacts(exe string) (marker.Facts, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, exe, "-c", pyMarkerFactsScript)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return marker.Facts{}, &ferrors.IOError{Context: exe, Err: err}
	}

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if len(lines) < 9 {
		return marker.Facts{}, &ferrors.ParseError{Context: exe, Err: errShortFactsOutput}
	}

	return marker.Facts{
		OSName:                  lines[0],
		Platform:                lines[1],
		Machine:                 lines[2],
		ImplementationName:      lines[3],
		ImplementationRelease:   lines[4],
		System:                  lines[5],
		ShortVersion:            lines[6],
		FullVersion:             lines[7],
		ShortImplementationName: lines[8],
	}, nil
}

// PopulateFacts loads marker facts for every resolved exe in the scan
// that is not already present.
func (s *Scan) PopulateFacts() error {
	for exe := range s.ExeToSites {
		if _, ok := s.ExeFacts[exe]; ok {
			continue
		}
		facts, err := LoadFacts(exe)
		if err != nil {
			return err
		}
		s.ExeFacts[exe] = facts
	}
	return nil
}

var errShortFactsOutput = &ferrors.InternalError{Reason: "interpreter facts script produced fewer than 9 lines"}
