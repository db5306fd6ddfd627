package eval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnatoatadaink/macro-player/internal/logging"
	"github.com/arnatoatadaink/macro-player/internal/vars"
)

// stubOracles is a canned-answer Oracles implementation.
type stubOracles struct {
	confidence float64
	pixel      [3]int
	windows    map[string]bool
	clipboard  string
	err        error

	searchedPath   string
	searchedRegion *Region
}

func (s *stubOracles) SearchImage(path string, region *Region) (float64, error) {
	s.searchedPath = path
	s.searchedRegion = region
	return s.confidence, s.err
}

func (s *stubOracles) SamplePixel(x, y int) (int, int, int, error) {
	return s.pixel[0], s.pixel[1], s.pixel[2], s.err
}

func (s *stubOracles) WindowExists(title string) (bool, error) {
	return s.windows[title], s.err
}

func (s *stubOracles) ReadClipboard() (string, error) {
	return s.clipboard, s.err
}

func writeTemplate(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("fake png"), 0o644))
	return path
}

func TestEvalConditionLiterals(t *testing.T) {
	store := vars.NewStore()
	assert.True(t, EvalCondition([]string{"TRUE"}, nil, store, nil))
	assert.True(t, EvalCondition([]string{"1"}, nil, store, nil))
	assert.False(t, EvalCondition([]string{"FALSE"}, nil, store, nil))
	assert.False(t, EvalCondition([]string{"0"}, nil, store, nil))
	assert.False(t, EvalCondition(nil, nil, store, nil))
}

func TestEvalConditionExpressionFallthrough(t *testing.T) {
	store := vars.NewStore()
	store.Set("$count", vars.IntVal(3))

	assert.True(t, EvalCondition([]string{"$count", "<", "5"}, nil, store, nil))
	assert.False(t, EvalCondition([]string{"$count", ">", "5"}, nil, store, nil))
	// A bare non-zero number is truthy.
	assert.True(t, EvalCondition([]string{"13"}, nil, store, nil))
	// Unset variables default to zero, so the condition is false.
	assert.False(t, EvalCondition([]string{"$missing"}, nil, store, nil))
}

func TestImageMatch(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "button.png")
	store := vars.NewStore()

	t.Run("match above default threshold", func(t *testing.T) {
		oracle := &stubOracles{confidence: 0.9}
		env := &Env{TemplatesDir: dir, Oracles: oracle}
		got := EvalCondition([]string{"IMAGE_MATCH", "button.png"}, env, store, nil)
		assert.True(t, got)
		assert.Equal(t, filepath.Join(dir, "button.png"), oracle.searchedPath)
		assert.Nil(t, oracle.searchedRegion)
	})

	t.Run("explicit threshold above confidence", func(t *testing.T) {
		oracle := &stubOracles{confidence: 0.9}
		env := &Env{TemplatesDir: dir, Oracles: oracle}
		got := EvalCondition(
			[]string{"IMAGE_MATCH", "button.png", "THRESHOLD", "0.95"},
			env, store, nil)
		assert.False(t, got)
	})

	t.Run("region arguments parsed", func(t *testing.T) {
		oracle := &stubOracles{confidence: 1}
		env := &Env{TemplatesDir: dir, Oracles: oracle}
		got := EvalCondition(
			[]string{"IMAGE_MATCH", "button.png", "REGION", "10", "20", "300", "400"},
			env, store, nil)
		assert.True(t, got)
		require.NotNil(t, oracle.searchedRegion)
		assert.Equal(t, Region{X: 10, Y: 20, W: 300, H: 400}, *oracle.searchedRegion)
	})

	t.Run("missing template is false plus warning", func(t *testing.T) {
		rec := &logRecorder{}
		env := &Env{TemplatesDir: dir, Oracles: &stubOracles{confidence: 1}}
		got := EvalCondition([]string{"IMAGE_MATCH", "no-such.png"}, env, store, rec.fn)
		assert.False(t, got)
		assert.Equal(t, 1, rec.count(logging.Warning))
	})

	t.Run("no capability is false plus warning", func(t *testing.T) {
		rec := &logRecorder{}
		env := &Env{TemplatesDir: dir}
		got := EvalCondition([]string{"IMAGE_MATCH", "button.png"}, env, store, rec.fn)
		assert.False(t, got)
		assert.Equal(t, 1, rec.count(logging.Warning))
	})

	t.Run("oracle failure is false plus warning", func(t *testing.T) {
		rec := &logRecorder{}
		env := &Env{TemplatesDir: dir, Oracles: &stubOracles{err: ErrUnavailable}}
		got := EvalCondition([]string{"IMAGE_MATCH", "button.png"}, env, store, rec.fn)
		assert.False(t, got)
		assert.Equal(t, 1, rec.count(logging.Warning))
	})
}

func TestPixelColor(t *testing.T) {
	store := vars.NewStore()
	oracle := &stubOracles{pixel: [3]int{100, 150, 200}}
	env := &Env{Oracles: oracle}

	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"exact match", []string{"5", "5", "100", "150", "200"}, true},
		{"within default tolerance", []string{"5", "5", "108", "145", "195"}, true},
		{"outside default tolerance", []string{"5", "5", "120", "150", "200"}, false},
		{"tight tolerance", []string{"5", "5", "108", "150", "200", "2"}, false},
		{"wide tolerance", []string{"5", "5", "150", "150", "200", "60"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := append([]string{"PIXEL_COLOR"}, tt.args...)
			assert.Equal(t, tt.want, EvalCondition(cond, env, store, nil))
		})
	}

	t.Run("too few arguments", func(t *testing.T) {
		rec := &logRecorder{}
		got := EvalCondition([]string{"PIXEL_COLOR", "1", "2"}, env, store, rec.fn)
		assert.False(t, got)
		assert.Equal(t, 1, rec.count(logging.Warning))
	})

	t.Run("no capability", func(t *testing.T) {
		rec := &logRecorder{}
		got := EvalCondition(
			[]string{"PIXEL_COLOR", "1", "2", "0", "0", "0"},
			&Env{}, store, rec.fn)
		assert.False(t, got)
		assert.Equal(t, 1, rec.count(logging.Warning))
	})
}

func TestWindowExists(t *testing.T) {
	store := vars.NewStore()
	oracle := &stubOracles{windows: map[string]bool{"My Editor": true}}
	env := &Env{Oracles: oracle}

	// Multi-word titles are joined with spaces.
	assert.True(t, EvalCondition([]string{"WINDOW_EXISTS", "My", "Editor"}, env, store, nil))
	assert.False(t, EvalCondition([]string{"WINDOW_EXISTS", "Other"}, env, store, nil))

	rec := &logRecorder{}
	assert.False(t, EvalCondition([]string{"WINDOW_EXISTS", "My", "Editor"}, &Env{}, store, rec.fn))
	assert.Equal(t, 1, rec.count(logging.Warning))
}

func TestFileExists(t *testing.T) {
	store := vars.NewStore()
	dir := t.TempDir()
	path := writeTemplate(t, dir, "data.txt")

	assert.True(t, EvalCondition([]string{"FILE_EXISTS", path}, nil, store, nil))
	assert.False(t, EvalCondition(
		[]string{"FILE_EXISTS", filepath.Join(dir, "missing.txt")}, nil, store, nil))
}
