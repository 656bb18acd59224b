// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/staranto/tennisbet/internal/attrs"
	"github.com/staranto/tennisbet/internal/store"
)

// EnvDelim overrides the "," between filter expressions.
const EnvDelim = "TENNISBET_FILTER_DELIM"

// filterRegex splits an expression into key, operator and target. Operators
// are one of = ^ ~ < > @ or /, optionally prefixed with '!'.
var filterRegex = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

// Filter is a single parsed --filter expression.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

// BuildFilters parses a filter specification string into a slice of Filter.
// Invalid specs are logged and skipped.
func BuildFilters(spec string) []Filter {
	//nolint:prealloc
	var filters []Filter

	if spec == "" {
		return filters
	}

	delim := ","
	if d, ok := os.LookupEnv(EnvDelim); ok && d != "" {
		delim = d
	}

	for _, filterSpec := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(filterSpec)
		if parts == nil || parts[1] == "" {
			log.Error("invalid filter: " + filterSpec)
			continue
		}

		negate := strings.HasPrefix(parts[2], "!")
		filters = append(filters, Filter{
			Key:     strings.TrimSpace(parts[1]),
			Negate:  negate,
			Operand: strings.TrimPrefix(parts[2], "!"),
			Target:  parts[3],
		})
	}

	return filters
}

// FilterRows keeps the rows matching every filter in spec and projects each
// onto the attrs, keyed by OutputKey. Hidden attrs are projected too so they
// can still drive sorting.
func FilterRows(rows store.Rows, al attrs.AttrList, spec string) []map[string]any {
	//nolint:prealloc
	var filtered []map[string]any

	filters := BuildFilters(spec)
	keys := resolveKeys(al, filters)

	for _, row := range rows {
		if !applyFilters(row, keys, filters) {
			continue
		}

		result := make(map[string]any, len(al))
		for _, attr := range al {
			if attr.Key == "*" {
				continue
			}
			result[attr.OutputKey] = row[attr.Key]
		}
		filtered = append(filtered, result)
	}

	return filtered
}

// resolveKeys maps each filter to the row column it reads. A filter may name
// either an attr's output key or its column. Unknown keys are reported once
// and dropped.
func resolveKeys(al attrs.AttrList, filters []Filter) []string {
	keys := make([]string, len(filters))
	for i, f := range filters {
		for _, attr := range al {
			if attr.OutputKey == f.Key || attr.Key == f.Key {
				keys[i] = attr.Key
				break
			}
		}
		if keys[i] == "" {
			msg := fmt.Sprintf("filter key not found: %s", f.Key)
			log.Error(msg)
			fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
		}
	}
	return keys
}

func applyFilters(row store.Row, keys []string, filters []Filter) bool {
	for i, filter := range filters {
		if keys[i] == "" {
			continue
		}

		value := row[keys[i]]
		if value == nil {
			return false
		}

		var result bool
		switch v := value.(type) {
		case string:
			result = checkStringOperand(v, filter)
		case time.Time:
			result = checkStringOperand(v.UTC().Format(time.RFC3339Nano), filter)
		case bool:
			result = checkStringOperand(strconv.FormatBool(v), filter)
		default:
			num, ok := toFloat64(value)
			if !ok {
				log.Errorf("unsupported type for filtering: %T", value)
				return false
			}
			result = checkNumericOperand(num, filter)
		}

		if !result {
			return false
		}
	}

	return true
}

// checkNumericOperand compares a numeric value against the filter target.
// Supported operands are =, > and <, each negatable.
func checkNumericOperand(value float64, filter Filter) bool {
	tgt, err := strconv.ParseFloat(strings.TrimSpace(filter.Target), 64)
	if err != nil {
		log.Error("invalid numeric target: " + filter.Target)
		return false
	}

	switch filter.Operand {
	case "=":
		return (value == tgt) == !filter.Negate
	case ">":
		return (value > tgt) == !filter.Negate
	case "<":
		return (value < tgt) == !filter.Negate
	default:
		log.Error("unsupported numeric operand: " + filter.Operand)
		return false
	}
}

// checkStringOperand evaluates a string comparison style filter.
func checkStringOperand(value string, filter Filter) bool {
	switch filter.Operand {
	case "=":
		return value == filter.Target == !filter.Negate
	case "~":
		return strings.EqualFold(value, filter.Target) == !filter.Negate
	case "^":
		return strings.HasPrefix(value, filter.Target) == !filter.Negate
	case ">":
		return value > filter.Target == !filter.Negate
	case "<":
		return value < filter.Target == !filter.Negate
	case "@":
		return strings.Contains(strings.ToLower(value), strings.ToLower(filter.Target)) == !filter.Negate
	case "/":
		matched, err := regexp.MatchString(filter.Target, value)
		if err != nil {
			log.Error("invalid regex: " + filter.Target)
			return false
		}
		return matched == !filter.Negate
	default:
		log.Error("unsupported filtering operand: " + filter.Operand)
		return false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
