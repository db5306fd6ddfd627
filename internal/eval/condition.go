package eval

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arnatoatadaink/macro-player/internal/logging"
	"github.com/arnatoatadaink/macro-player/internal/vars"
)

const defaultImageThreshold = 0.80

// EvalCondition evaluates a condition token list to a boolean.
//
// The upper-cased first token selects a builtin predicate (IMAGE_MATCH,
// PIXEL_COLOR, WINDOW_EXISTS, FILE_EXISTS) or a literal (TRUE/1, FALSE/0);
// anything else falls through to typed expression evaluation with the
// result coerced to its truthiness. A missing capability never fails the
// run: it logs a warning and the condition is false.
func EvalCondition(tokens []string, env *Env, store *vars.Store, log logging.Func) bool {
	log = logging.Safe(log)
	if len(tokens) == 0 {
		return false
	}
	if env == nil {
		env = &Env{}
	}
	fn := strings.ToUpper(tokens[0])
	args := tokens[1:]

	switch fn {
	case "TRUE", "1":
		return true
	case "FALSE", "0":
		return false
	case "IMAGE_MATCH":
		return imageMatch(args, env, log)
	case "PIXEL_COLOR":
		return pixelColor(args, env, log)
	case "WINDOW_EXISTS":
		return windowExists(args, env, log)
	case "FILE_EXISTS":
		return fileExists(args, log)
	}

	return Eval(tokens, store, log).Truthy()
}

// imageMatch handles IMAGE_MATCH "template.png" [THRESHOLD t] [REGION x y w h].
func imageMatch(args []string, env *Env, log logging.Func) bool {
	if len(args) == 0 {
		log(logging.Warning, "IMAGE_MATCH: template filename required")
		return false
	}
	template := args[0]
	threshold := defaultImageThreshold
	var region *Region

	for i := 1; i < len(args); {
		switch strings.ToLower(args[i]) {
		case "threshold":
			if i+1 < len(args) {
				if t, err := strconv.ParseFloat(args[i+1], 64); err == nil {
					threshold = t
				}
				i += 2
				continue
			}
			i++
		case "region":
			if i+4 < len(args) {
				var dims [4]int
				ok := true
				for j := 0; j < 4; j++ {
					n, err := strconv.Atoi(args[i+1+j])
					if err != nil {
						ok = false
						break
					}
					dims[j] = n
				}
				if ok {
					region = &Region{X: dims[0], Y: dims[1], W: dims[2], H: dims[3]}
				}
				i += 5
				continue
			}
			i++
		default:
			i++
		}
	}

	path := template
	if !filepath.IsAbs(path) {
		path = filepath.Join(env.TemplatesDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		log(logging.Warning, fmt.Sprintf("IMAGE_MATCH: template not found: %s", path))
		return false
	}
	if env.Oracles == nil {
		log(logging.Warning, "IMAGE_MATCH: no screen capture capability")
		return false
	}
	conf, err := env.Oracles.SearchImage(path, region)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			log(logging.Warning, "IMAGE_MATCH: no screen capture capability")
		} else {
			log(logging.Warning, fmt.Sprintf("IMAGE_MATCH: %v", err))
		}
		return false
	}
	return conf >= threshold
}

// pixelColor handles PIXEL_COLOR x y r g b [tolerance], default tolerance 10.
func pixelColor(args []string, env *Env, log logging.Func) bool {
	if len(args) < 5 {
		log(logging.Warning, "PIXEL_COLOR: usage: PIXEL_COLOR x y r g b [tolerance]")
		return false
	}
	nums := make([]int, 0, 6)
	for _, a := range args[:5] {
		n, err := strconv.Atoi(a)
		if err != nil {
			log(logging.Warning, fmt.Sprintf("PIXEL_COLOR: invalid argument %q", a))
			return false
		}
		nums = append(nums, n)
	}
	tolerance := 10
	if len(args) > 5 {
		if t, err := strconv.Atoi(args[5]); err == nil {
			tolerance = t
		}
	}
	if env.Oracles == nil {
		log(logging.Warning, "PIXEL_COLOR: no pixel sampling capability")
		return false
	}
	r, g, b, err := env.Oracles.SamplePixel(nums[0], nums[1])
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			log(logging.Warning, "PIXEL_COLOR: no pixel sampling capability")
		} else {
			log(logging.Warning, fmt.Sprintf("PIXEL_COLOR: %v", err))
		}
		return false
	}
	return abs(r-nums[2]) <= tolerance &&
		abs(g-nums[3]) <= tolerance &&
		abs(b-nums[4]) <= tolerance
}

func windowExists(args []string, env *Env, log logging.Func) bool {
	if len(args) == 0 {
		log(logging.Warning, "WINDOW_EXISTS: title required")
		return false
	}
	if env.Oracles == nil {
		log(logging.Warning, "WINDOW_EXISTS: no window enumeration capability")
		return false
	}
	found, err := env.Oracles.WindowExists(strings.Join(args, " "))
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			log(logging.Warning, "WINDOW_EXISTS: no window enumeration capability")
		} else {
			log(logging.Warning, fmt.Sprintf("WINDOW_EXISTS: %v", err))
		}
		return false
	}
	return found
}

func fileExists(args []string, log logging.Func) bool {
	if len(args) == 0 {
		log(logging.Warning, "FILE_EXISTS: path required")
		return false
	}
	_, err := os.Stat(strings.Join(args, " "))
	return err == nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
