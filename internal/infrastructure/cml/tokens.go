package cml

import (
	"encoding/xml"
	"strings"
)

// skipElement consumes tokens until the element that was just opened is
// closed. Iterative on purpose: unknown subtrees can nest arbitrarily deep
// and must not grow the call stack.
func skipElement(dec *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}

// elementText reads the character data of the element that was just opened
// and consumes its end tag. Nested child elements are ignored; only text at
// the element's own depth counts.
func elementText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 1 {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// requisite is one name/value pair from a <ЗначенияРеквизитов> block
type requisite struct {
	Name  string
	Value string
}

// parseRequisite reads one <ЗначениеРеквизита> pair
func parseRequisite(dec *xml.Decoder) (requisite, error) {
	var r requisite
	for {
		tok, err := dec.Token()
		if err != nil {
			return r, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Наименование":
				if r.Name, err = elementText(dec); err != nil {
					return r, err
				}
			case "Значение":
				if r.Value, err = elementText(dec); err != nil {
					return r, err
				}
			default:
				if err := skipElement(dec); err != nil {
					return r, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "ЗначениеРеквизита" {
				return r, nil
			}
		}
	}
}

// attr returns the value of the named attribute, or ""
func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
