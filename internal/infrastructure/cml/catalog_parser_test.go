package cml

import (
	"fmt"
	"strings"
	"testing"

	"github.com/autoparts/backend/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func catalogDoc(products string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация ВерсияСхемы="2.05">
  <Каталог>
    <Товары>` + products + `</Товары>
  </Каталог>
</КоммерческаяИнформация>`
}

func TestParseCatalog(t *testing.T) {
	t.Run("parses product fields and requisites", func(t *testing.T) {
		doc := catalogDoc(`
      <Товар>
        <Ид>guid-1</Ид>
        <Артикул>BP-1078</Артикул>
        <Наименование>Колодки тормозные передние</Наименование>
        <Описание>Комплект из 4 шт.</Описание>
        <БазоваяЕдиница>шт</БазоваяЕдиница>
        <ЗначенияРеквизитов>
          <ЗначениеРеквизита>
            <Наименование>Бренд</Наименование>
            <Значение>Bosch</Значение>
          </ЗначениеРеквизита>
          <ЗначениеРеквизита>
            <Наименование>Страна</Наименование>
            <Значение>Германия</Значение>
          </ЗначениеРеквизита>
        </ЗначенияРеквизитов>
      </Товар>`)

		var got []catalog.Product
		err := ParseCatalog(strings.NewReader(doc), 10, func(batch []catalog.Product) error {
			got = append(got, batch...)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, got, 1)

		p := got[0]
		assert.Equal(t, "guid-1", p.GUID)
		assert.Equal(t, "BP-1078", p.Article)
		assert.Equal(t, "Колодки тормозные передние", p.Name)
		assert.Equal(t, "Комплект из 4 шт.", p.Description)
		assert.Equal(t, "шт", p.Unit)
		require.Len(t, p.Attributes, 2)
		assert.Equal(t, "Бренд", p.Attributes[0].Name)
		assert.Equal(t, "Bosch", p.Attributes[0].Value)
		assert.Equal(t, "Страна", p.Attributes[1].Name)
	})

	t.Run("delivers full batches and flushes the remainder", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 7; i++ {
			fmt.Fprintf(&sb, "<Товар><Ид>guid-%d</Ид><Наименование>Товар %d</Наименование></Товар>", i, i)
		}

		var sizes []int
		var all []catalog.Product
		err := ParseCatalog(strings.NewReader(catalogDoc(sb.String())), 3, func(batch []catalog.Product) error {
			sizes = append(sizes, len(batch))
			all = append(all, append([]catalog.Product(nil), batch...)...)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{3, 3, 1}, sizes)
		require.Len(t, all, 7)
		for i, p := range all {
			assert.Equal(t, fmt.Sprintf("guid-%d", i), p.GUID)
		}
	})

	t.Run("exact multiple of batch size flushes nothing extra", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 6; i++ {
			fmt.Fprintf(&sb, "<Товар><Ид>guid-%d</Ид></Товар>", i)
		}

		calls := 0
		err := ParseCatalog(strings.NewReader(catalogDoc(sb.String())), 3, func(batch []catalog.Product) error {
			calls++
			assert.Len(t, batch, 3)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("skips products without an identifier", func(t *testing.T) {
		doc := catalogDoc(`
      <Товар><Наименование>Безымянный</Наименование></Товар>
      <Товар><Ид>guid-ok</Ид><Наименование>Нормальный</Наименование></Товар>`)

		var got []catalog.Product
		err := ParseCatalog(strings.NewReader(doc), 10, func(batch []catalog.Product) error {
			got = append(got, batch...)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "guid-ok", got[0].GUID)
	})

	t.Run("skips unknown nested elements", func(t *testing.T) {
		doc := catalogDoc(`
      <Товар>
        <Ид>guid-1</Ид>
        <Картинка>import_files/a/b.jpg</Картинка>
        <Группы><Ид>group-1</Ид></Группы>
        <СтавкиНалогов><СтавкаНалога><Наименование>НДС</Наименование><Ставка>20</Ставка></СтавкаНалога></СтавкиНалогов>
        <Наименование>Фильтр масляный</Наименование>
      </Товар>`)

		var got []catalog.Product
		err := ParseCatalog(strings.NewReader(doc), 10, func(batch []catalog.Product) error {
			got = append(got, batch...)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Фильтр масляный", got[0].Name)
	})

	t.Run("strips the characteristic suffix from the identifier", func(t *testing.T) {
		doc := catalogDoc(`<Товар><Ид>guid-1#char-9</Ид></Товар>`)

		var got []catalog.Product
		err := ParseCatalog(strings.NewReader(doc), 10, func(batch []catalog.Product) error {
			got = append(got, batch...)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "guid-1", got[0].GUID)
	})

	t.Run("decodes windows-1251 documents", func(t *testing.T) {
		utf8Doc := `<?xml version="1.0" encoding="windows-1251"?>
<КоммерческаяИнформация>
  <Товар><Ид>guid-1</Ид><Наименование>Свеча зажигания</Наименование></Товар>
</КоммерческаяИнформация>`
		raw, err := charmap.Windows1251.NewEncoder().String(utf8Doc)
		require.NoError(t, err)

		var got []catalog.Product
		err = ParseCatalog(strings.NewReader(raw), 10, func(batch []catalog.Product) error {
			got = append(got, batch...)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Свеча зажигания", got[0].Name)
	})

	t.Run("consumer error aborts the parse", func(t *testing.T) {
		doc := catalogDoc(`<Товар><Ид>a</Ид></Товар><Товар><Ид>b</Ид></Товар>`)

		wantErr := fmt.Errorf("db unavailable")
		err := ParseCatalog(strings.NewReader(doc), 1, func(batch []catalog.Product) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("malformed document returns a parse error", func(t *testing.T) {
		doc := `<КоммерческаяИнформация><Товар><Ид>guid-1</Ид>`

		err := ParseCatalog(strings.NewReader(doc), 10, func(batch []catalog.Product) error {
			return nil
		})
		require.Error(t, err)
		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr)
	})

	t.Run("rejects a non-positive batch size", func(t *testing.T) {
		err := ParseCatalog(strings.NewReader(catalogDoc("")), 0, func(batch []catalog.Product) error {
			return nil
		})
		assert.Error(t, err)
	})
}
