package ics

import (
	"strings"
	"unicode/utf8"

	ical "github.com/arran4/golang-ical"
	"golang.org/x/text/encoding/charmap"
)

// propertyText returns the decoded TEXT value of the first occurrence of
// prop, or "" when the property is absent. golang-ical has already undone
// the RFC 5545 escapes.
func propertyText(ve *ical.VEvent, prop ical.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return decodeText([]byte(p.Value))
}

// decodeText returns b as a string, decoding it as UTF-8 when valid and
// as ISO-8859-1 otherwise. Feeds exported from older tools are often
// Latin-1 despite claiming UTF-8.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}
