package worklist

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mc-extractor/internal/model"
)

func TestFromRange(t *testing.T) {
	w, err := FromRange(1706527, 1706530)
	require.NoError(t, err)
	assert.Equal(t, []model.MCNumber{1706527, 1706528, 1706529, 1706530}, w.Numbers)
	assert.Equal(t, "range 1706527-1706530", w.Source)

	single, err := FromRange(5, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, single.Len())
}

func TestFromRange_Invalid(t *testing.T) {
	_, err := FromRange(10, 9)
	assert.Error(t, err)

	_, err = FromRange(0, 9)
	assert.Error(t, err)

	_, err = FromRange(-3, -1)
	assert.Error(t, err)
}

func TestFromReader_SkipsJunk(t *testing.T) {
	in := "1706527\n\n  1706528  \nabc\n12a\n-5\n0\n1706529\r\n"
	w, err := FromReader("test", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []model.MCNumber{1706527, 1706528, 1706529}, w.Numbers)
}

func TestFromReader_Empty(t *testing.T) {
	_, err := FromReader("test", strings.NewReader("\nfoo\n\n"))
	assert.True(t, eris.Is(err, ErrEmpty))
}

func TestFromNumbers(t *testing.T) {
	w, err := FromNumbers("api", []int{3, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []model.MCNumber{3, 1}, w.Numbers)

	_, err = FromNumbers("api", nil)
	assert.True(t, eris.Is(err, ErrEmpty))
}

func TestSampleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample_mc_numbers.txt")
	require.NoError(t, WriteSample(path))

	w, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(SampleNumbers), w.Len())
	assert.Equal(t, model.MCNumber(1706527), w.Numbers[0])
}

func TestFromFile_Missing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromRange_TooLarge(t *testing.T) {
	_, err := FromRange(1, math.MaxInt)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRangeTooLarge))

	_, err = FromRange(1, DefaultMaxRange+1)
	assert.True(t, eris.Is(err, ErrRangeTooLarge))

	w, err := FromRange(1, DefaultMaxRange)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRange, w.Len())
}

func TestFromRangeMax(t *testing.T) {
	_, err := FromRangeMax(10, 14, 4)
	assert.True(t, eris.Is(err, ErrRangeTooLarge))

	w, err := FromRangeMax(10, 13, 4)
	require.NoError(t, err)
	assert.Equal(t, []model.MCNumber{10, 11, 12, 13}, w.Numbers)

	// The top of the int range must terminate.
	w, err = FromRangeMax(math.MaxInt-1, math.MaxInt, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.MCNumber{math.MaxInt - 1, math.MaxInt}, w.Numbers)
}
