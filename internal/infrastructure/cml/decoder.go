// Package cml implements streaming parsers and the export writer for the 1C
// CommerceML dialect. Parsers are forward-only pull parsers over the XML
// token stream: they hold at most one batch of records in memory regardless
// of document size, and skip unknown elements by depth tracking so that
// schema additions on the ERP side do not break imports.
package cml

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ParseError wraps a low-level XML error with document position context.
// A parse error is fatal for the whole document.
type ParseError struct {
	Element string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("cml: malformed document: %v", e.Err)
	}
	return fmt.Sprintf("cml: malformed document at <%s>: %v", e.Element, e.Err)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Err
}

// charsetReader decodes the encodings 1C actually emits. UTF-8 passes
// through; windows-1251 is transcoded on the fly.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return input, nil
	case "windows-1251", "cp1251":
		return transform.NewReader(input, charmap.Windows1251.NewDecoder()), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", charset)
}

// parseDecimal parses a numeric requisite with exact decimal arithmetic.
// 1C writes decimals with either a dot or a comma separator, and pads with
// spaces inside long numbers.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// parseBool parses the boolean requisite vocabulary used by 1C
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "да", "истина", "1":
		return true
	}
	return false
}

// baseGUID strips the characteristic suffix from an offer identifier.
// Offers for product variants arrive as "<product-guid>#<characteristic>".
func baseGUID(id string) string {
	if i := strings.IndexByte(id, '#'); i >= 0 {
		return id[:i]
	}
	return id
}
