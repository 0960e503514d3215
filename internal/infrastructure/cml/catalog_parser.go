package cml

import (
	"encoding/xml"
	"errors"
	"io"

	"github.com/autoparts/backend/internal/domain/catalog"
)

// ProductConsumer receives one bounded batch of parsed products. The parser
// never rolls back batches already handed over; transaction boundaries
// belong to the consumer.
type ProductConsumer func(batch []catalog.Product) error

// ParseCatalog stream-parses a CommerceML import document (import*.xml) and
// delivers products in batches of at most batchSize. The remainder, if any,
// is flushed once at end of stream.
func ParseCatalog(r io.Reader, batchSize int, consume ProductConsumer) error {
	if batchSize <= 0 {
		return errors.New("cml: batch size must be positive")
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	batch := make([]catalog.Product, 0, batchSize)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &ParseError{Err: err}
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Товар" {
			continue
		}

		product, err := parseProduct(dec)
		if err != nil {
			return &ParseError{Element: "Товар", Err: err}
		}
		if product.GUID == "" {
			// A product without an identifier cannot be upserted.
			continue
		}

		batch = append(batch, product)
		if len(batch) == batchSize {
			if err := consume(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		return consume(batch)
	}
	return nil
}

// parseProduct reads one <Товар> subtree. Unknown children are skipped by
// depth tracking.
func parseProduct(dec *xml.Decoder) (catalog.Product, error) {
	var p catalog.Product
	for {
		tok, err := dec.Token()
		if err != nil {
			return p, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Ид":
				text, err := elementText(dec)
				if err != nil {
					return p, err
				}
				p.GUID = baseGUID(text)
			case "Артикул":
				if p.Article, err = elementText(dec); err != nil {
					return p, err
				}
			case "Наименование":
				if p.Name, err = elementText(dec); err != nil {
					return p, err
				}
			case "Описание":
				if p.Description, err = elementText(dec); err != nil {
					return p, err
				}
			case "БазоваяЕдиница":
				if p.Unit, err = elementText(dec); err != nil {
					return p, err
				}
			case "ЗначенияРеквизитов":
				attrs, err := parseRequisites(dec)
				if err != nil {
					return p, err
				}
				p.Attributes = append(p.Attributes, attrs...)
			default:
				if err := skipElement(dec); err != nil {
					return p, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "Товар" {
				return p, nil
			}
		}
	}
}

// parseRequisites reads a <ЗначенияРеквизитов> block into product attributes
func parseRequisites(dec *xml.Decoder) ([]catalog.ProductAttribute, error) {
	var attrs []catalog.ProductAttribute
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "ЗначениеРеквизита" {
				if err := skipElement(dec); err != nil {
					return nil, err
				}
				continue
			}
			req, err := parseRequisite(dec)
			if err != nil {
				return nil, err
			}
			if req.Name != "" {
				attrs = append(attrs, catalog.ProductAttribute{Name: req.Name, Value: req.Value})
			}
		case xml.EndElement:
			if t.Name.Local == "ЗначенияРеквизитов" {
				return attrs, nil
			}
		}
	}
}
