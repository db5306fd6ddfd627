package eval

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/arnatoatadaink/macro-player/internal/lexer"
	"github.com/arnatoatadaink/macro-player/internal/logging"
	"github.com/arnatoatadaink/macro-player/internal/vars"
)

// functionNames lists the builtins an assignment right-hand side may call
// ($x = RANDOM 1 10). The four condition predicates double as functions
// returning their boolean.
var functionNames = map[string]bool{
	"IMAGE_MATCH":     true,
	"PIXEL_COLOR":     true,
	"WINDOW_EXISTS":   true,
	"FILE_EXISTS":     true,
	"GET_TIME":        true,
	"RANDOM":          true,
	"CLIPBOARD_GET":   true,
	"GET_PIXEL_COLOR": true,
}

// IsFunction reports whether name (any case) is a builtin function.
func IsFunction(name string) bool {
	return functionNames[strings.ToUpper(name)]
}

// CallFunction evaluates a builtin function call and returns its typed
// result. Variable references in args are resolved first. Failures log a
// warning and return a zero-ish value; they never abort the run.
func CallFunction(name string, args []string, env *Env, store *vars.Store, log logging.Func) vars.Value {
	log = logging.Safe(log)
	if env == nil {
		env = &Env{}
	}

	resolved := make([]string, len(args))
	for i, a := range args {
		if lexer.IsVariable(a) {
			resolved[i] = store.Get(a, vars.IntVal(0)).String()
		} else {
			resolved[i] = a
		}
	}

	switch fn := strings.ToUpper(name); fn {
	case "GET_TIME":
		return vars.FloatVal(float64(time.Now().UnixMilli()) / 1000.0)

	case "RANDOM":
		if len(resolved) < 2 {
			log(logging.Warning, "RANDOM: usage: RANDOM min max")
			return vars.IntVal(0)
		}
		lo, err1 := strconv.ParseInt(resolved[0], 10, 64)
		hi, err2 := strconv.ParseInt(resolved[1], 10, 64)
		if err1 != nil || err2 != nil || lo > hi {
			log(logging.Warning, fmt.Sprintf("RANDOM: invalid range %s..%s", resolved[0], resolved[1]))
			return vars.IntVal(0)
		}
		return vars.IntVal(lo + rand.Int64N(hi-lo+1))

	case "CLIPBOARD_GET":
		if env.Oracles == nil {
			log(logging.Warning, "CLIPBOARD_GET: no clipboard capability")
			return vars.StrVal("")
		}
		text, err := env.Oracles.ReadClipboard()
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				log(logging.Warning, "CLIPBOARD_GET: no clipboard capability")
			} else {
				log(logging.Warning, fmt.Sprintf("CLIPBOARD_GET: %v", err))
			}
			return vars.StrVal("")
		}
		return vars.StrVal(text)

	case "GET_PIXEL_COLOR":
		return getPixelColor(resolved, env, log)

	case "IMAGE_MATCH", "PIXEL_COLOR", "WINDOW_EXISTS", "FILE_EXISTS":
		cond := append([]string{fn}, resolved...)
		return vars.BoolVal(EvalCondition(cond, env, store, log))
	}

	log(logging.Warning, fmt.Sprintf("unknown function %q", name))
	return vars.IntVal(0)
}

// getPixelColor returns the sampled pixel as an "r g b" string, or "0 0 0"
// when sampling is unavailable.
func getPixelColor(args []string, env *Env, log logging.Func) vars.Value {
	if len(args) < 2 {
		log(logging.Warning, "GET_PIXEL_COLOR: usage: GET_PIXEL_COLOR x y")
		return vars.StrVal("0 0 0")
	}
	x, err1 := strconv.Atoi(args[0])
	y, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		log(logging.Warning, "GET_PIXEL_COLOR: x/y must be integers")
		return vars.StrVal("0 0 0")
	}
	if env.Oracles == nil {
		log(logging.Warning, "GET_PIXEL_COLOR: no pixel sampling capability")
		return vars.StrVal("0 0 0")
	}
	r, g, b, err := env.Oracles.SamplePixel(x, y)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			log(logging.Warning, "GET_PIXEL_COLOR: no pixel sampling capability")
		} else {
			log(logging.Warning, fmt.Sprintf("GET_PIXEL_COLOR: %v", err))
		}
		return vars.StrVal("0 0 0")
	}
	return vars.StrVal(fmt.Sprintf("%d %d %d", r, g, b))
}
