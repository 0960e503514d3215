package cml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/autoparts/backend/internal/domain/orders"
)

const schemaVersion = "2.05"

// exportRoot is the <КоммерческаяИнформация> envelope of an order export
type exportRoot struct {
	XMLName   xml.Name      `xml:"КоммерческаяИнформация"`
	Version   string        `xml:"ВерсияСхемы,attr"`
	Generated string        `xml:"ДатаФормирования,attr"`
	Documents []exportOrder `xml:"Документ"`
}

type exportOrder struct {
	GUID       string           `xml:"Ид"`
	Number     string           `xml:"Номер"`
	Date       string           `xml:"Дата"`
	Operation  string           `xml:"ХозОперация"`
	Role       string           `xml:"Роль"`
	Currency   string           `xml:"Валюта,omitempty"`
	Total      string           `xml:"Сумма"`
	Partners   *exportPartners  `xml:"Контрагенты,omitempty"`
	Items      exportItems      `xml:"Товары"`
	Requisites exportRequisites `xml:"ЗначенияРеквизитов"`
}

type exportPartners struct {
	Partner []exportPartner `xml:"Контрагент"`
}

type exportPartner struct {
	GUID string `xml:"Ид,omitempty"`
	Name string `xml:"Наименование"`
	Role string `xml:"Роль"`
}

type exportItems struct {
	Item []exportItem `xml:"Товар"`
}

type exportItem struct {
	GUID     string `xml:"Ид"`
	Name     string `xml:"Наименование"`
	Price    string `xml:"ЦенаЗаЕдиницу"`
	Quantity string `xml:"Количество"`
	Total    string `xml:"Сумма"`
}

type exportRequisites struct {
	Requisite []exportRequisite `xml:"ЗначениеРеквизита"`
}

type exportRequisite struct {
	Name  string `xml:"Наименование"`
	Value string `xml:"Значение"`
}

// WriteOrders renders the current set of orders into the CommerceML dialect
// the ERP pulls with the sale/query call. Decimals are rendered with a fixed
// scale of two so the ERP's own decimal parsing never sees exponents.
func WriteOrders(w io.Writer, list []orders.Order, now time.Time) error {
	root := exportRoot{
		Version:   schemaVersion,
		Generated: now.Format("2006-01-02T15:04:05"),
		Documents: make([]exportOrder, 0, len(list)),
	}

	for _, o := range list {
		doc := exportOrder{
			GUID:      o.GUID,
			Number:    o.Number,
			Date:      o.PlacedAt.Format("2006-01-02"),
			Operation: "Заказ товара",
			Role:      "Продавец",
			Currency:  o.Currency,
			Total:     o.Total.StringFixed(2),
		}
		if o.CustomerName != "" || o.CustomerGUID != "" {
			doc.Partners = &exportPartners{Partner: []exportPartner{{
				GUID: o.CustomerGUID,
				Name: o.CustomerName,
				Role: "Покупатель",
			}}}
		}
		for _, item := range o.Items {
			doc.Items.Item = append(doc.Items.Item, exportItem{
				GUID:     item.ProductGUID,
				Name:     item.ProductName,
				Price:    item.Price.StringFixed(2),
				Quantity: item.Quantity.StringFixed(2),
				Total:    item.Sum.StringFixed(2),
			})
		}
		doc.Requisites.Requisite = []exportRequisite{
			{Name: "Статус заказа", Value: statusText(o.Status)},
			{Name: "Оплачен", Value: boolText(o.Paid)},
		}
		root.Documents = append(root.Documents, doc)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("cml: encode export: %w", err)
	}
	return enc.Close()
}

// statusText maps the internal enum back to the ERP vocabulary
func statusText(s orders.Status) string {
	switch s {
	case orders.StatusNew:
		return "Новый"
	case orders.StatusConfirmed:
		return "Подтвержден"
	case orders.StatusPaid:
		return "Оплачен"
	case orders.StatusShipped:
		return "Отгружен"
	case orders.StatusCompleted:
		return "Выполнен"
	case orders.StatusCancelled:
		return "Отменен"
	case orders.StatusReturned:
		return "Возврат"
	}
	return string(s)
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
