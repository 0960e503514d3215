package cml

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/autoparts/backend/internal/domain/orders"
)

// ChangeConsumer receives one parsed order-change document at a time
type ChangeConsumer func(change orders.Change) error

// ParseOrderChanges stream-parses an order-change document from the ERP.
// Each <Документ> is delivered to the consumer as soon as it is complete;
// the document set is unbounded and never materialized.
func ParseOrderChanges(r io.Reader, consume ChangeConsumer) error {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ParseError{Err: err}
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Документ" {
			continue
		}

		change, err := parseChange(dec)
		if err != nil {
			return &ParseError{Element: "Документ", Err: err}
		}
		if change.GUID == "" && change.Number == "" {
			continue
		}
		if err := consume(change); err != nil {
			return err
		}
	}
}

// parseChange reads one <Документ> subtree
func parseChange(dec *xml.Decoder) (orders.Change, error) {
	var c orders.Change
	for {
		tok, err := dec.Token()
		if err != nil {
			return c, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Ид":
				if c.GUID, err = elementText(dec); err != nil {
					return c, err
				}
			case "Номер":
				if c.Number, err = elementText(dec); err != nil {
					return c, err
				}
			case "Сумма":
				text, err := elementText(dec)
				if err != nil {
					return c, err
				}
				if c.Total, err = parseDecimal(text); err != nil {
					return c, err
				}
			case "ЗначенияРеквизитов":
				if err := parseChangeRequisites(dec, &c); err != nil {
					return c, err
				}
			default:
				if err := skipElement(dec); err != nil {
					return c, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "Документ" {
				return c, nil
			}
		}
	}
}

// parseChangeRequisites maps the requisite vocabulary of an order-change
// document onto the change. The boolean requisites (Оплачен, Отгружен,
// ПометкаУдаления) are authoritative over the textual status.
func parseChangeRequisites(dec *xml.Decoder, c *orders.Change) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "ЗначениеРеквизита" {
				if err := skipElement(dec); err != nil {
					return err
				}
				continue
			}
			req, err := parseRequisite(dec)
			if err != nil {
				return err
			}
			switch strings.ToLower(strings.TrimSpace(req.Name)) {
			case "статус заказа", "статус":
				c.StatusText = req.Value
			case "оплачен":
				c.Paid = parseBool(req.Value)
			case "отгружен":
				c.Shipped = parseBool(req.Value)
			case "отменен", "отменён", "пометкаудаления", "пометка удаления":
				if parseBool(req.Value) {
					c.Cancelled = true
				}
			}
		case xml.EndElement:
			if t.Name.Local == "ЗначенияРеквизитов" {
				return nil
			}
		}
	}
}
