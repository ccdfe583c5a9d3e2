package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type helperFunc func(args []any) (any, error)

// helpers is the closed set of functions callable from a placeholder.
var helpers = map[string]helperFunc{
	"get":         helperGet,
	"toFixed":     helperToFixed,
	"toUpperCase": helperUpper,
	"toLowerCase": helperLower,
	"len":         helperLen,
	"includes":    helperIncludes,
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func helperGet(args []any) (any, error) {
	return Get(arg(args, 0), Stringify(arg(args, 1)), arg(args, 2)), nil
}

func helperToFixed(args []any) (any, error) {
	n, ok := ToNumber(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("toFixed: %v is not a number", arg(args, 0))
	}
	digits := 0
	if d, ok := ToNumber(arg(args, 1)); ok {
		digits = int(math.Max(0, math.Min(20, d)))
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return formatNumber(n), nil
	}
	return strconv.FormatFloat(n, 'f', digits, 64), nil
}

func helperUpper(args []any) (any, error) {
	s, ok := arg(args, 0).(string)
	if !ok {
		return nil, fmt.Errorf("toUpperCase: expected string, got %T", arg(args, 0))
	}
	return strings.ToUpper(s), nil
}

func helperLower(args []any) (any, error) {
	s, ok := arg(args, 0).(string)
	if !ok {
		return nil, fmt.Errorf("toLowerCase: expected string, got %T", arg(args, 0))
	}
	return strings.ToLower(s), nil
}

func helperLen(args []any) (any, error) {
	return float64(Length(arg(args, 0))), nil
}

func helperIncludes(args []any) (any, error) {
	return Contains(arg(args, 0), arg(args, 1)), nil
}

// Get walks path ("a.b[0]['c d']") through obj and returns fallback when any
// segment is missing or the final value is nil.
func Get(obj any, path string, fallback any) any {
	cur := obj
	for _, seg := range SplitPath(path) {
		next, ok := Member(cur, seg)
		if !ok {
			return fallback
		}
		cur = next
	}
	if cur == nil {
		return fallback
	}
	return cur
}

// SplitPath splits a property path into segments, accepting dot and bracket
// notation. Quoted bracket keys keep their dots.
func SplitPath(path string) []string {
	var segs []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			segs = append(segs, b.String())
			b.Reset()
		}
	}
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				b.WriteString(path[i+1:])
				i = len(path)
				continue
			}
			key := strings.TrimSpace(path[i+1 : i+end])
			if len(key) >= 2 && (key[0] == '\'' || key[0] == '"') && key[len(key)-1] == key[0] {
				key = key[1 : len(key)-1]
			}
			segs = append(segs, key)
			i += end
		default:
			b.WriteByte(c)
		}
	}
	flush()
	return segs
}
