package cml

import (
	"encoding/xml"
	"errors"
	"io"

	"github.com/autoparts/backend/internal/domain/catalog"
)

// OffersBatch carries the price and stock records extracted from a bounded
// number of offers.
type OffersBatch struct {
	Prices []catalog.Price
	Stocks []catalog.Stock
}

// OffersConsumer receives one bounded batch of parsed offer records
type OffersConsumer func(batch OffersBatch) error

// ParseOffers stream-parses a CommerceML offers document (offers*.xml).
// batchSize bounds the number of offers accumulated before the consumer is
// invoked. Price lines with a non-positive value and warehouse lines with a
// non-positive quantity are dropped at parse time: they are no-ops and must
// not pollute stored state.
func ParseOffers(r io.Reader, batchSize int, consume OffersConsumer) error {
	if batchSize <= 0 {
		return errors.New("cml: batch size must be positive")
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var batch OffersBatch
	offers := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &ParseError{Err: err}
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Предложение" {
			continue
		}

		prices, stocks, err := parseOffer(dec)
		if err != nil {
			return &ParseError{Element: "Предложение", Err: err}
		}
		batch.Prices = append(batch.Prices, prices...)
		batch.Stocks = append(batch.Stocks, stocks...)

		offers++
		if offers == batchSize {
			if err := consume(batch); err != nil {
				return err
			}
			batch = OffersBatch{}
			offers = 0
		}
	}

	if offers > 0 {
		return consume(batch)
	}
	return nil
}

// parseOffer reads one <Предложение> subtree
func parseOffer(dec *xml.Decoder) ([]catalog.Price, []catalog.Stock, error) {
	var (
		productGUID string
		prices      []catalog.Price
		stocks      []catalog.Stock
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Ид":
				text, err := elementText(dec)
				if err != nil {
					return nil, nil, err
				}
				productGUID = baseGUID(text)
			case "Цены":
				p, err := parsePrices(dec)
				if err != nil {
					return nil, nil, err
				}
				prices = append(prices, p...)
			case "Склад":
				// Warehouse stock arrives as attributes on an empty element.
				qty, err := parseDecimal(attr(t, "КоличествоНаСкладе"))
				if err != nil {
					return nil, nil, err
				}
				warehouseGUID := attr(t, "ИдСклада")
				if err := skipElement(dec); err != nil {
					return nil, nil, err
				}
				if warehouseGUID == "" || qty.Sign() <= 0 {
					continue
				}
				stocks = append(stocks, catalog.Stock{
					WarehouseGUID: warehouseGUID,
					Quantity:      qty,
				})
			default:
				if err := skipElement(dec); err != nil {
					return nil, nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "Предложение" {
				// Product guid appears before the sub-records in every 1C
				// export, but stamp it afterwards to be safe about ordering.
				for i := range prices {
					prices[i].ProductGUID = productGUID
				}
				for i := range stocks {
					stocks[i].ProductGUID = productGUID
				}
				if productGUID == "" {
					return nil, nil, nil
				}
				return prices, stocks, nil
			}
		}
	}
}

// parsePrices reads a <Цены> block
func parsePrices(dec *xml.Decoder) ([]catalog.Price, error) {
	var prices []catalog.Price
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "Цена" {
				if err := skipElement(dec); err != nil {
					return nil, err
				}
				continue
			}
			price, err := parsePrice(dec)
			if err != nil {
				return nil, err
			}
			if price.PriceTypeGUID != "" && price.Value.Sign() > 0 {
				prices = append(prices, price)
			}
		case xml.EndElement:
			if t.Name.Local == "Цены" {
				return prices, nil
			}
		}
	}
}

// parsePrice reads one <Цена> subtree
func parsePrice(dec *xml.Decoder) (catalog.Price, error) {
	var p catalog.Price
	for {
		tok, err := dec.Token()
		if err != nil {
			return p, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "ИдТипаЦены":
				if p.PriceTypeGUID, err = elementText(dec); err != nil {
					return p, err
				}
			case "Наименование", "Представление":
				text, err := elementText(dec)
				if err != nil {
					return p, err
				}
				if p.PriceTypeName == "" {
					p.PriceTypeName = text
				}
			case "ЦенаЗаЕдиницу":
				text, err := elementText(dec)
				if err != nil {
					return p, err
				}
				if p.Value, err = parseDecimal(text); err != nil {
					return p, err
				}
			case "Валюта":
				if p.Currency, err = elementText(dec); err != nil {
					return p, err
				}
			default:
				if err := skipElement(dec); err != nil {
					return p, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "Цена" {
				return p, nil
			}
		}
	}
}
