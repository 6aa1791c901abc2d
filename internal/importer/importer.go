package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter loads designer catalogs with price and stock from CSV.
//
// Recognised headers: id, designer, name, description, price, currency, stock, image.
// Price is in major units ("1499.50"); an empty id creates a new product.
type CSVImporter struct {
	reader   *csv.Reader
	products ProductWriter
	currency string
	logger   *zap.Logger
}

func NewCSVImporter(r io.Reader, repo ProductWriter, defaultCurrency string, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:   csvr,
		products: repo,
		currency: defaultCurrency,
		logger:   logging.OrNop(logger).Named("importer"),
	}
}

type csvRow struct {
	line       int
	ID         string
	DesignerID string
	Name       string
	Desc       string
	Price      string
	Currency   string
	Stock      string
	ImageURL   string
}

// Run upserts every product row and returns how many were written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"designer", "name", "price", "stock"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing %q column", required)
		}
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line
		if err := i.save(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}
	i.logger.Info("catalog imported", zap.Int("products", imported))
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	p, err := i.product(row)
	if err != nil {
		return fmt.Errorf("line %d: %w", row.line, err)
	}
	if _, err := i.products.Upsert(ctx, p); err != nil {
		return fmt.Errorf("line %d: upsert product %q: %w", row.line, row.Name, err)
	}
	return nil
}

func (i *CSVImporter) product(row *csvRow) (domain.Product, error) {
	if row.DesignerID == "" || row.Name == "" {
		return domain.Product{}, domain.Validationf("designer and name are required")
	}
	if row.ID != "" {
		if _, err := uuid.Parse(row.ID); err != nil {
			return domain.Product{}, domain.Validationf("invalid id %q", row.ID)
		}
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return domain.Product{}, domain.Validationf("invalid price %q", row.Price)
	}
	minor, err := domain.MinorUnits("price "+strconv.Quote(row.Price), price)
	if err != nil {
		return domain.Product{}, err
	}
	stock, err := strconv.Atoi(row.Stock)
	if err != nil || stock < 0 {
		return domain.Product{}, domain.Validationf("invalid stock %q", row.Stock)
	}
	currency := strings.ToUpper(row.Currency)
	if currency == "" {
		currency = i.currency
	}
	return domain.Product{
		ID:                row.ID,
		DesignerID:        row.DesignerID,
		Name:              row.Name,
		Description:       row.Desc,
		PriceMinor:        minor,
		Currency:          currency,
		AvailableQuantity: stock,
		ImageURL:          row.ImageURL,
	}, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// parseRow returns nil for blank rows.
func parseRow(record []string, index map[string]int) *csvRow {
	row := &csvRow{
		ID:         pick(record, index, "id"),
		DesignerID: pick(record, index, "designer"),
		Name:       pick(record, index, "name"),
		Desc:       pick(record, index, "description"),
		Price:      pick(record, index, "price"),
		Currency:   pick(record, index, "currency"),
		Stock:      pick(record, index, "stock"),
		ImageURL:   pick(record, index, "image"),
	}
	if row.DesignerID == "" && row.Name == "" && row.Price == "" {
		return nil
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
