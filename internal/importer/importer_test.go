package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"designer-marketplace/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.items = append(s.items, p)
	return &p, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,designer,name,description,price,currency,stock,image
00000000-0000-0000-0000-000000000001,designer-1,Ikat Stole,Handwoven,1499.50,inr,12,https://example.com/ikat.jpg
,,,,,,,
,designer-2,Kalamkari Tote,,899,,0,`

	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, "INR", nil)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 || len(repo.items) != 2 {
		t.Fatalf("expected 2 products imported, got %d (%d saved)", count, len(repo.items))
	}

	first := repo.items[0]
	if first.ID != "00000000-0000-0000-0000-000000000001" {
		t.Fatalf("expected id to be preserved, got %s", first.ID)
	}
	if first.PriceMinor != 149950 || first.Currency != "INR" || first.AvailableQuantity != 12 || first.ImageURL == "" {
		t.Fatalf("unexpected product data: %+v", first)
	}

	second := repo.items[1]
	if second.ID != "" || second.DesignerID != "designer-2" || second.PriceMinor != 89900 || second.Currency != "INR" || second.AvailableQuantity != 0 {
		t.Fatalf("unexpected product data: %+v", second)
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"negative stock": "designer,name,price,stock\nd1,Shawl,10,-1",
		"bad price":      "designer,name,price,stock\nd1,Shawl,ten,1",
		"fractional":     "designer,name,price,stock\nd1,Shawl,10.001,1",
		"negative price": "designer,name,price,stock\nd1,Shawl,-10,1",
		"huge price":     "designer,name,price,stock\nd1,Shawl,184467440737095516.17,1",
		"bad id":         "id,designer,name,price,stock\nnot-a-uuid,d1,Shawl,10,1",
		"missing name":   "designer,name,price,stock\nd1,,10,1",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCSVImporter(strings.NewReader(data), &stubProductRepo{}, "INR", nil).Run(context.Background())
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), "line 2") {
				t.Fatalf("error should name the line: %v", err)
			}
		})
	}
}

func TestCSVImporter_MissingColumns(t *testing.T) {
	_, err := NewCSVImporter(strings.NewReader("name,price\nx,1"), &stubProductRepo{}, "INR", nil).Run(context.Background())
	if err == nil {
		t.Fatalf("expected missing columns to fail")
	}
}
