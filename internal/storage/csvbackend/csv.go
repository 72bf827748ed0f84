package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
)

var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order.
var headers = []string{
	"id",
	"kind",
	"query",
	"page",
	"provider",
	"mode",
	"items_json",
	"domain",
	"link",
	"title",
	"rank",
	"state",
	"error",
	"created_at",
}

// New opens (or creates) a CSV file as a storage.Backend, writing the header
// row to a new file.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, rec *storage.Record) error {
	itemsJSON := ""
	if len(rec.Items) > 0 {
		data, err := json.Marshal(rec.Items)
		if err != nil {
			return fmt.Errorf("csvbackend: encode items: %w", err)
		}
		itemsJSON = string(data)
	}

	row := []string{
		rec.ID,
		string(rec.Kind),
		rec.Query,
		strconv.Itoa(rec.Page),
		rec.Provider,
		string(rec.Mode),
		itemsJSON,
		rec.Domain,
		rec.Link,
		rec.Title,
		rec.Rank.String(),
		rec.State,
		rec.Error,
		rec.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.Record{}, nil
		}
		return nil, fmt.Errorf("csvbackend: read header: %w", err)
	}

	var matched []*storage.Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: %w", err)
		}
		if len(row) != len(headers) {
			continue // skip malformed rows
		}

		rec, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	return filter.Page(matched), nil
}

func decodeRow(row []string) (*storage.Record, error) {
	page, _ := strconv.Atoi(row[3])
	createdAt, _ := time.Parse(time.RFC3339Nano, row[13])

	rank, err := serp.ParseRank(row[10])
	if err != nil {
		return nil, fmt.Errorf("csvbackend: row %s: %w", row[0], err)
	}

	rec := &storage.Record{
		ID:        row[0],
		Kind:      storage.Kind(row[1]),
		Query:     row[2],
		Page:      page,
		Provider:  row[4],
		Mode:      serp.Mode(row[5]),
		Domain:    row[7],
		Link:      row[8],
		Title:     row[9],
		Rank:      rank,
		State:     row[11],
		Error:     row[12],
		CreatedAt: createdAt,
	}
	if row[6] != "" {
		if err := json.Unmarshal([]byte(row[6]), &rec.Items); err != nil {
			return nil, fmt.Errorf("csvbackend: row %s items: %w", row[0], err)
		}
	}
	return rec, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
