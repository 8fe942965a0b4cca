package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/text/encoding/charmap"
)

// Source loads the full list of catalog items.
type Source interface {
	Load(ctx context.Context) ([]Item, error)
}

// StaticSource serves a fixed item list.
type StaticSource []Item

// Load returns a copy of the static items.
func (s StaticSource) Load(context.Context) ([]Item, error) {
	out := make([]Item, len(s))
	copy(out, s)
	return out, nil
}

// FileSource reads a CSV export from disk.
type FileSource struct {
	Path string
}

// Load parses the file. A missing file is an empty catalog, not an error.
func (f FileSource) Load(ctx context.Context) ([]Item, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: read %s: %w", f.Path, err)
	}
	return ParseCSV(bytes.NewReader(data))
}

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the CSV export from an S3 object.
type S3Source struct {
	Client S3API
	Bucket string
	Key    string
}

// Load downloads and parses the object.
func (s S3Source) Load(ctx context.Context) ([]Item, error) {
	if s.Client == nil || s.Bucket == "" || s.Key == "" {
		return nil, fmt.Errorf("catalog: s3 source not configured")
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: get s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("catalog: read s3 body: %w", err)
	}
	return ParseCSV(bytes.NewReader(data))
}

var headerAliases = map[string]string{
	"marca":              "brand",
	"brand":              "brand",
	"modelo":             "model",
	"model":              "model",
	"anio":               "year",
	"año":                "year",
	"year":               "year",
	"precio":             "price",
	"price":              "price",
	"moneda":             "currency",
	"currency":           "currency",
	"stock":              "stock",
	"existencias":        "stock",
	"colores":            "colors",
	"colors":             "colors",
	"cabina":             "cabin",
	"cabin":              "cabin",
	"combustible":        "fuel",
	"fuel":               "fuel",
	"financiamiento":     "financing",
	"financing":          "financing",
	"ubicacion":          "location",
	"ubicación":          "location",
	"location":           "location",
	"fotos":              "photos",
	"photos":             "photos",
	"ficha_tecnica":      "tech_sheet",
	"tech_sheet":         "tech_sheet",
	"corrida_financiera": "financing_doc",
	"financing_doc":      "financing_doc",
}

// ParseCSV reads a catalog export. Exports from the dealer's spreadsheet are
// often Latin-1; anything that is not valid UTF-8 is decoded as such.
func ParseCSV(r io.Reader) ([]Item, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("catalog: decode latin-1: %w", err)
		}
		raw = decoded
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for idx, h := range header {
		if key, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			cols[key] = idx
		}
	}
	if _, ok := cols["model"]; !ok {
		return nil, fmt.Errorf("catalog: csv has no model column")
	}

	var items []Item
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: read row: %w", err)
		}
		get := func(key string) string {
			idx, ok := cols[key]
			if !ok || idx >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[idx])
		}
		model := get("model")
		if model == "" {
			continue
		}
		items = append(items, Item{
			Brand:           get("brand"),
			Model:           model,
			Year:            atoiLoose(get("year")),
			Price:           parsePrice(get("price")),
			Currency:        strings.ToUpper(get("currency")),
			Stock:           atoiLoose(get("stock")),
			Colors:          splitList(get("colors")),
			Cabin:           get("cabin"),
			Fuel:            get("fuel"),
			Financing:       parseFinancing(get("financing")),
			Location:        get("location"),
			PhotoURLs:       splitList(get("photos")),
			TechSheetURL:    get("tech_sheet"),
			FinancingDocURL: get("financing_doc"),
		})
	}
	return items, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == '|' || r == ';' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func atoiLoose(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func parsePrice(v string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "", "MXN", "", "mxn", "").Replace(v)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseFinancing(v string) Financing {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "si", "sí", "yes", "true", "1":
		return FinancingYes
	case "no", "false", "0":
		return FinancingNo
	}
	return FinancingUnspecified
}
