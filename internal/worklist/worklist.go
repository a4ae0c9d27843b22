// Package worklist builds the ordered list of MC numbers a batch processes.
package worklist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mc-extractor/internal/model"
)

// ErrEmpty is returned when a source yields no usable MC numbers.
var ErrEmpty = eris.New("worklist: no valid MC numbers")

// ErrRangeTooLarge is returned when a range spans more numbers than allowed.
var ErrRangeTooLarge = eris.New("worklist: range too large")

// DefaultMaxRange bounds FromRange.
const DefaultMaxRange = 100_000

// Worklist is an ordered list of MC numbers with a description of its origin.
type Worklist struct {
	Source  string
	Numbers []model.MCNumber
}

// Len returns the number of entries.
func (w Worklist) Len() int { return len(w.Numbers) }

// FromRange returns start..end inclusive, at most DefaultMaxRange numbers.
func FromRange(start, end int) (Worklist, error) {
	return FromRangeMax(start, end, DefaultMaxRange)
}

// FromRangeMax returns start..end inclusive, rejecting ranges longer than
// maxLen. A non-positive maxLen means DefaultMaxRange.
func FromRangeMax(start, end, maxLen int) (Worklist, error) {
	if start <= 0 || end <= 0 {
		return Worklist{}, eris.Errorf("worklist: range bounds must be positive, got %d-%d", start, end)
	}
	if start > end {
		return Worklist{}, eris.Errorf("worklist: start %d is after end %d", start, end)
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxRange
	}
	// Both bounds are positive, so end-start cannot overflow.
	if end-start >= maxLen {
		return Worklist{}, eris.Wrapf(ErrRangeTooLarge, "%d-%d spans more than %d numbers", start, end, maxLen)
	}

	size := end - start + 1
	nums := make([]model.MCNumber, size)
	for i := range nums {
		nums[i] = model.MCNumber(start + i)
	}
	return Worklist{Source: fmt.Sprintf("range %d-%d", start, end), Numbers: nums}, nil
}

// FromNumbers wraps an explicit list, dropping non-positive values.
func FromNumbers(source string, numbers []int) (Worklist, error) {
	w := Worklist{Source: source}
	for _, n := range numbers {
		if n > 0 {
			w.Numbers = append(w.Numbers, model.MCNumber(n))
		}
	}
	if w.Len() == 0 {
		return Worklist{}, ErrEmpty
	}
	return w, nil
}

// FromReader reads one number per line. Blank and non-numeric lines are
// skipped silently.
func FromReader(source string, r io.Reader) (Worklist, error) {
	var nums []int
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !isDigits(line) {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	if err := sc.Err(); err != nil {
		return Worklist{}, eris.Wrapf(err, "worklist: read %s", source)
	}
	return FromNumbers(source, nums)
}

// FromFile reads a worklist file.
func FromFile(path string) (Worklist, error) {
	f, err := os.Open(path)
	if err != nil {
		return Worklist{}, eris.Wrapf(err, "worklist: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return FromReader("file "+path, f)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SampleNumbers is the contents of a generated sample file.
var SampleNumbers = []int{1706527, 1706528, 1706529, 1706530, 1706531}

// WriteSample writes a sample worklist file to path.
func WriteSample(path string) error {
	var b strings.Builder
	for _, n := range SampleNumbers {
		b.WriteString(strconv.Itoa(n))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return eris.Wrapf(err, "worklist: write sample %s", path)
	}
	return nil
}
