// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package attrs

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
)

var lengthRegex = regexp.MustCompile(`-?\d+`)

// Attr is one column of the output: the row column it reads, whether it is
// shown, the title it is shown under and an optional transformation.
type Attr struct {
	// The row column to read.
	Key string `yaml:"key"`
	// Should this Attr be included in output or is it just intended for
	// filtering and sorting?
	Include bool `yaml:"include"`
	// The key to use in the output. This is also the column title when
	// output=text.
	OutputKey string `yaml:"outputKey"`
	// Transformation spec to apply to the output value.
	TransformSpec string `yaml:"transformSpec"`
}

// Transform applies the spec to value. Only strings and times are
// transformed; everything else is returned untouched.
//
//	t/T  render an RFC 3339 timestamp in $TZ
//	l/L  lower case, u/U upper case (last one wins)
//	N    truncate to N characters, -N elide the middle
func (a *Attr) Transform(value any) any {
	var result string
	switch v := value.(type) {
	case string:
		result = v
	case time.Time:
		result = v.Format(time.RFC3339Nano)
	default:
		return value
	}

	if strings.ContainsAny(a.TransformSpec, "tT") {
		// We're only going to convert if we've specifically been told what TZ
		// to use.
		if tz := os.Getenv("TZ"); tz != "" {
			if loc, err := time.LoadLocation(tz); err == nil {
				if t, err := time.Parse(time.RFC3339Nano, result); err == nil {
					result = t.In(loc).Format("2006-01-02T15:04:05MST")
				} else {
					log.Debugf("not a time: %s", result)
				}
			}
		}
	}

	// A global case transformation is prepended to the attr's own, so the
	// later one wins. --attrs '*::U,name::l' is lower case.
	lastL := strings.LastIndexAny(a.TransformSpec, "lL")
	lastU := strings.LastIndexAny(a.TransformSpec, "uU")

	if lastL > lastU {
		result = strings.ToLower(result)
	} else if lastU > lastL {
		result = strings.ToUpper(result)
	}

	if match := lengthRegex.FindAllString(a.TransformSpec, -1); len(match) != 0 {
		// Take the last (overriding) match.
		l, _ := strconv.Atoi(match[len(match)-1])
		abs := int(math.Abs(float64(l)))
		runes := []rune(result)
		if abs > 0 && len(runes) > abs {
			if l < 0 {
				side := max(abs/2-1, 1)
				result = string(runes[:side]) + ".." + string(runes[len(runes)-side:])
			} else {
				result = string(runes[:l])
			}
		}
	}

	return result
}

type AttrList []Attr

// Defaults returns an AttrList including each column once, in order.
func Defaults(columns []string) AttrList {
	al := make(AttrList, 0, len(columns))
	for _, c := range columns {
		al = append(al, Attr{Key: c, Include: true, OutputKey: c})
	}
	return al
}

// String matches the format of the --attrs flag.
func (a *AttrList) String() string {
	result := make([]string, 0, len(*a))
	for _, attr := range *a {
		result = append(result, fmt.Sprintf("%s:%s:%s", attr.Key, attr.OutputKey, attr.TransformSpec))
	}
	return strings.Join(result, ",")
}

// Set parses a comma-separated --attrs value. Each spec is
// key[:output[:transform]]. A leading ! keeps the column for filtering and
// sorting but hides it; "*" carries a transform applied to every column. Specs
// naming a column already in the list update it in place.
func (a *AttrList) Set(value string) error {
	if value == "" || value == "*" {
		return nil
	}

	const (
		keyIdx = iota
		outputIdx
		transformIdx
	)

specloop:
	for _, spec := range strings.Split(value, ",") {
		attr := Attr{Include: true}

		fields := strings.Split(spec, ":")

		attr.Key = strings.TrimSpace(fields[keyIdx])
		if strings.HasPrefix(attr.Key, "!") {
			attr.Include = false
			attr.Key = attr.Key[1:]
		}
		if attr.Key == "" {
			return fmt.Errorf("empty attribute in %q", value)
		}
		if attr.Key == "*" {
			attr.Include = false
		}

		attr.OutputKey = attr.Key
		if len(fields) > outputIdx && strings.TrimSpace(fields[outputIdx]) != "" {
			attr.OutputKey = strings.TrimSpace(fields[outputIdx])
		}

		if len(fields) > transformIdx {
			attr.TransformSpec = strings.TrimSpace(fields[transformIdx])
		}

		for i := range *a {
			if (*a)[i].Key == attr.Key || (*a)[i].OutputKey == attr.Key {
				(*a)[i].Include = attr.Include
				(*a)[i].OutputKey = attr.OutputKey
				(*a)[i].TransformSpec = attr.TransformSpec
				continue specloop
			}
		}

		*a = append(*a, attr)
	}

	return nil
}

// SetGlobalTransformSpec prepends the "*" transform spec, if any, to every
// attr in the list.
func (a *AttrList) SetGlobalTransformSpec() {
	spec := ""
	for _, attr := range *a {
		if attr.Key == "*" {
			spec = attr.TransformSpec
			break
		}
	}
	if spec == "" {
		return
	}

	for i := range *a {
		if (*a)[i].Key != "*" {
			(*a)[i].TransformSpec = spec + "," + (*a)[i].TransformSpec
		}
	}
}

// Included returns the attrs shown in output.
func (a AttrList) Included() AttrList {
	out := make(AttrList, 0, len(a))
	for _, attr := range a {
		if attr.Include && attr.Key != "*" {
			out = append(out, attr)
		}
	}
	return out
}

func (a *AttrList) Type() string {
	return "list"
}
