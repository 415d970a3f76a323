package funcs

import (
	"fmt"
	"strings"

	"github.com/vjrajchauhan/pivot-engine/value"
)

// String positions in the SQL surface are 1-based and count UTF-8
// codepoints, not bytes.

func init() {
	register(&Scalar{Name: "LOWER", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnLower})
	register(&Scalar{Name: "UPPER", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnUpper})
	register(&Scalar{Name: "LENGTH", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnLength})
	register(&Scalar{Name: "TRIM", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnTrim})
	register(&Scalar{Name: "LTRIM", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnLtrim})
	register(&Scalar{Name: "RTRIM", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnRtrim})
	register(&Scalar{Name: "SUBSTRING", MinArgs: 2, MaxArgs: 3, Strict: true, Fn: fnSubstring})
	register(&Scalar{Name: "SUBSTR", MinArgs: 2, MaxArgs: 3, Strict: true, Fn: fnSubstring})
	register(&Scalar{Name: "REPLACE", MinArgs: 3, MaxArgs: 3, Strict: true, Fn: fnReplace})
	register(&Scalar{Name: "CONCAT", MinArgs: 1, MaxArgs: -1, Strict: true, Fn: fnConcat})
	register(&Scalar{Name: "CONCAT_WS", MinArgs: 2, MaxArgs: -1, Strict: false, Fn: fnConcatWS})
	register(&Scalar{Name: "LEFT", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnLeft})
	register(&Scalar{Name: "RIGHT", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnRight})
	register(&Scalar{Name: "REVERSE", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnReverse})
	register(&Scalar{Name: "REPEAT", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnRepeat})
	register(&Scalar{Name: "LPAD", MinArgs: 2, MaxArgs: 3, Strict: true, Fn: fnLpad})
	register(&Scalar{Name: "RPAD", MinArgs: 2, MaxArgs: 3, Strict: true, Fn: fnRpad})
	register(&Scalar{Name: "POSITION", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnPosition})
	register(&Scalar{Name: "STRPOS", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnStrpos})
	register(&Scalar{Name: "STARTS_WITH", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnStartsWith})
	register(&Scalar{Name: "SPLIT_PART", MinArgs: 3, MaxArgs: 3, Strict: true, Fn: fnSplitPart})
}

func argStr(v value.Value) string {
	return v.Text()
}

func argInt(v value.Value) (int64, error) {
	c, err := value.Cast(v, value.Type{Kind: value.KindInt64}, true)
	if err != nil {
		return 0, err
	}
	return c.Int(), nil
}

func fnLower(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Str(strings.ToLower(argStr(args[0]))), nil
}

func fnUpper(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Str(strings.ToUpper(argStr(args[0]))), nil
}

func fnLength(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Int(int64(len([]rune(argStr(args[0]))))), nil
}

func fnTrim(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Str(strings.TrimSpace(argStr(args[0]))), nil
}

func fnLtrim(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Str(strings.TrimLeft(argStr(args[0]), " \t\r\n")), nil
}

func fnRtrim(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Str(strings.TrimRight(argStr(args[0]), " \t\r\n")), nil
}

// substringRunes implements the shared 1-based slice used by
// SUBSTRING, LEFT, and RIGHT. A start before position 1 counts the gap
// against the length, matching standard SQL.
func substringRunes(s string, start, length int64, hasLength bool) string {
	runes := []rune(s)
	n := int64(len(runes))

	end := n + 1
	if hasLength {
		if length < 0 {
			return ""
		}
		end = start + length
	}
	if start < 1 {
		start = 1
	}
	if end > n+1 {
		end = n + 1
	}
	if start >= end {
		return ""
	}
	return string(runes[start-1 : end-1])
}

func fnSubstring(_ *Ctx, args []value.Value) (value.Value, error) {
	start, err := argInt(args[1])
	if err != nil {
		return value.Null(), err
	}
	var length int64
	hasLength := len(args) == 3
	if hasLength {
		if length, err = argInt(args[2]); err != nil {
			return value.Null(), err
		}
	}
	return value.Str(substringRunes(argStr(args[0]), start, length, hasLength)), nil
}

func fnReplace(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Str(strings.ReplaceAll(argStr(args[0]), argStr(args[1]), argStr(args[2]))), nil
}

func fnConcat(_ *Ctx, args []value.Value) (value.Value, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(argStr(a))
	}
	return value.Str(b.String()), nil
}

func fnConcatWS(_ *Ctx, args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.Null(), nil
	}
	sep := argStr(args[0])
	parts := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if a.IsNull() {
			continue
		}
		parts = append(parts, argStr(a))
	}
	return value.Str(strings.Join(parts, sep)), nil
}

func fnLeft(_ *Ctx, args []value.Value) (value.Value, error) {
	n, err := argInt(args[1])
	if err != nil {
		return value.Null(), err
	}
	return value.Str(substringRunes(argStr(args[0]), 1, n, true)), nil
}

func fnRight(_ *Ctx, args []value.Value) (value.Value, error) {
	n, err := argInt(args[1])
	if err != nil {
		return value.Null(), err
	}
	runes := []rune(argStr(args[0]))
	if n < 0 {
		n = 0
	}
	if n > int64(len(runes)) {
		n = int64(len(runes))
	}
	return value.Str(string(runes[int64(len(runes))-n:])), nil
}

func fnReverse(_ *Ctx, args []value.Value) (value.Value, error) {
	runes := []rune(argStr(args[0]))
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return value.Str(string(runes)), nil
}

func fnRepeat(_ *Ctx, args []value.Value) (value.Value, error) {
	n, err := argInt(args[1])
	if err != nil {
		return value.Null(), err
	}
	if n < 0 {
		n = 0
	}
	const maxRepeatLen = 1 << 26
	s := argStr(args[0])
	if int64(len(s))*n > maxRepeatLen {
		return value.Null(), fmt.Errorf("REPEAT: result too large")
	}
	return value.Str(strings.Repeat(s, int(n))), nil
}

func pad(s string, width int64, fill string, left bool) string {
	runes := []rune(s)
	if int64(len(runes)) >= width {
		return string(runes[:width])
	}
	if fill == "" {
		return s
	}
	fillRunes := []rune(fill)
	need := width - int64(len(runes))
	padding := make([]rune, need)
	for i := range padding {
		padding[i] = fillRunes[i%len(fillRunes)]
	}
	if left {
		return string(padding) + s
	}
	return s + string(padding)
}

func fnLpad(_ *Ctx, args []value.Value) (value.Value, error) {
	width, err := argInt(args[1])
	if err != nil {
		return value.Null(), err
	}
	if width < 0 {
		width = 0
	}
	fill := " "
	if len(args) == 3 {
		fill = argStr(args[2])
	}
	return value.Str(pad(argStr(args[0]), width, fill, true)), nil
}

func fnRpad(_ *Ctx, args []value.Value) (value.Value, error) {
	width, err := argInt(args[1])
	if err != nil {
		return value.Null(), err
	}
	if width < 0 {
		width = 0
	}
	fill := " "
	if len(args) == 3 {
		fill = argStr(args[2])
	}
	return value.Str(pad(argStr(args[0]), width, fill, false)), nil
}

func runeIndex(haystack, needle string) int64 {
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return 0
	}
	return int64(len([]rune(haystack[:idx]))) + 1
}

// fnPosition implements POSITION(needle IN haystack): the parser
// delivers the needle first.
func fnPosition(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Int(runeIndex(argStr(args[1]), argStr(args[0]))), nil
}

func fnStrpos(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Int(runeIndex(argStr(args[0]), argStr(args[1]))), nil
}

func fnStartsWith(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Bool(strings.HasPrefix(argStr(args[0]), argStr(args[1]))), nil
}

func fnSplitPart(_ *Ctx, args []value.Value) (value.Value, error) {
	n, err := argInt(args[2])
	if err != nil {
		return value.Null(), err
	}
	sep := argStr(args[1])
	if sep == "" || n < 1 {
		return value.Str(""), nil
	}
	parts := strings.Split(argStr(args[0]), sep)
	if n > int64(len(parts)) {
		return value.Str(""), nil
	}
	return value.Str(parts[n-1]), nil
}
