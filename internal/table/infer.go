package table

import (
	"strconv"
	"strings"
	"time"
)

// NullTokens are read as missing values.
var NullTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {}, "NULL": {}, "None": {}, "#N/A": {},
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// IsNullToken reports whether s stands for a missing value.
func IsNullToken(s string) bool {
	_, ok := NullTokens[strings.TrimSpace(s)]
	return ok
}

// ParseTime tries the accepted timestamp layouts.
func ParseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromRecords builds a table from a header and string rows, inferring one
// kind per column. Short rows are padded with missing values.
func FromRecords(header []string, rows [][]string) *Table {
	names := UniqueNames(header)
	cols := make([]*Column, len(names))
	for j, name := range names {
		raw := make([]string, len(rows))
		for i, r := range rows {
			if j < len(r) {
				raw[i] = r[j]
			}
		}
		cols[j] = InferColumn(name, raw)
	}
	return &Table{Columns: cols}
}

// InferColumn picks the narrowest kind every non-missing value fits:
// int, float, bool, timestamp, then text.
func InferColumn(name string, raw []string) *Column {
	kind := inferKind(raw)
	cells := make([]any, len(raw))
	for i, s := range raw {
		if IsNullToken(s) {
			continue
		}
		cells[i] = convert(kind, s)
	}
	return &Column{Name: name, Kind: kind, cells: cells}
}

func inferKind(raw []string) Kind {
	isInt, isFloat, isBool, isTime := true, true, true, true
	seen := false
	for _, s := range raw {
		if IsNullToken(s) {
			continue
		}
		seen = true
		v := strings.TrimSpace(s)
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat && !isInt {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, err := parseBool(v); err != nil {
				isBool = false
			}
		}
		if isTime {
			if _, ok := ParseTime(v); !ok {
				isTime = false
			}
		}
		if !isInt && !isFloat && !isBool && !isTime {
			return Text
		}
	}
	switch {
	case !seen:
		return Text
	case isInt:
		return Int
	case isFloat:
		return Float
	case isBool:
		return Bool
	case isTime:
		return Time
	}
	return Text
}

func convert(kind Kind, s string) any {
	v := strings.TrimSpace(s)
	switch kind {
	case Int:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case Float:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case Bool:
		b, _ := parseBool(v)
		return b
	case Time:
		t, _ := ParseTime(v)
		return t
	}
	return s
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// UniqueNames fills blank headers with "Unnamed: i" and suffixes repeats
// with ".1", ".2", ...
func UniqueNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, ok := used[name]; ok {
			used[name] = n + 1
			candidate := name + "." + strconv.Itoa(n+1)
			for {
				if _, taken := used[candidate]; !taken {
					break
				}
				used[name]++
				candidate = name + "." + strconv.Itoa(used[name])
			}
			name = candidate
		}
		used[name] = 0
		out[i] = name
	}
	return out
}
