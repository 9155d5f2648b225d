package manifest

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/flexatone/fetter/internal/depspec"
	"github.com/flexatone/fetter/internal/ferrors"
)

// FromRequirementsFile reads a requirements.txt, following "-r <path>"
// and "--requirement <path>" include directives breadth-first, relative
// to the including file's directory.
func FromRequirementsFile(path string) (*ConstraintSet, error) {
	specs, err := requirementsLinesFromFile(path)
	if err != nil {
		return nil, err
	}
	cs := NewConstraintSet()
	if err := cs.InsertAll(specs); err != nil {
		return nil, err
	}
	return cs, nil
}

func requirementsLinesFromFile(entry string) ([]*depspec.DepSpec, error) {
	queue := []string{entry}
	var specs []*depspec.DepSpec

	for len(queue) > 0 {
		fp := queue[0]
		queue = queue[1:]

		f, err := os.Open(fp)
		if err != nil {
			return nil, &ferrors.IOError{Context: fp, Err: err}
		}
		dir := filepath.Dir(fp)
		lineSpecs, includes, err := parseRequirementsLines(f, dir)
		f.Close()
		if err != nil {
			return nil, err
		}
		specs = append(specs, lineSpecs...)
		queue = append(queue, includes...)
	}
	return specs, nil
}

func parseRequirementsLines(f *os.File, relDir string) ([]*depspec.DepSpec, []string, error) {
	var specs []*depspec.DepSpec
	var includes []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := trimLine(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if ref, ok := stripIncludeDirective(line); ok {
			includes = append(includes, filepath.Join(relDir, ref))
			continue
		}
		d, err := depspec.FromString(line)
		if err != nil {
			return nil, nil, err
		}
		specs = append(specs, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, &ferrors.IOError{Context: "requirements", Err: err}
	}
	return specs, includes, nil
}

func trimLine(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

func stripIncludeDirective(line string) (string, bool) {
	for _, prefix := range []string{"-r ", "--requirement "} {
		if len(line) > len(prefix) && line[:len(prefix)] == prefix {
			return trimLine(line[len(prefix):]), true
		}
	}
	return "", false
}
