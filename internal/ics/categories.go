package ics

import (
	"strings"
	"unicode/utf8"

	ical "github.com/arran4/golang-ical"
)

// categoryValue is one of the CATEGORIES shapes seen in real feeds.
type categoryValue interface {
	isCategoryValue()
}

// categoryText is a single comma separated string.
type categoryText string

// categoryList holds one string per CATEGORIES line, each possibly comma
// separated.
type categoryList []string

// categoryBytes is a comma separated payload of unknown encoding.
type categoryBytes []byte

func (categoryText) isCategoryValue()  {}
func (categoryList) isCategoryValue()  {}
func (categoryBytes) isCategoryValue() {}

// categorySource classifies the CATEGORIES lines of ve. It returns nil
// when the record has none. golang-ical unescapes "\," while parsing, so
// an escaped comma splits like any other.
func categorySource(ve *ical.VEvent) categoryValue {
	props := ve.GetProperties(ical.ComponentPropertyCategories)
	if len(props) == 0 {
		return nil
	}

	values := make([]string, 0, len(props))
	for _, p := range props {
		if !utf8.ValidString(p.Value) {
			raw := make([]string, 0, len(props))
			for _, q := range props {
				raw = append(raw, q.Value)
			}
			return categoryBytes(strings.Join(raw, ","))
		}
		values = append(values, p.Value)
	}

	if len(values) == 1 {
		return categoryText(values[0])
	}
	return categoryList(values)
}

// resolveCategories flattens any category shape into trimmed, non-empty
// names in source order. Duplicates are kept.
func resolveCategories(v categoryValue) []string {
	out := []string{}
	switch c := v.(type) {
	case categoryText:
		out = appendSplit(out, string(c))
	case categoryList:
		for _, s := range c {
			out = appendSplit(out, s)
		}
	case categoryBytes:
		out = appendSplit(out, decodeText(c))
	}
	return out
}

func appendSplit(out []string, s string) []string {
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
