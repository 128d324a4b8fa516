package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
)

// Chart kinds.
const (
	KindLine    = "line"
	KindBar     = "bar"
	KindScatter = "scatter"
)

// Plotter renders tables as standalone HTML charts.
type Plotter struct {
	dir string
}

// NewPlotter creates a Plotter writing under dir.
func NewPlotter(dir string) *Plotter {
	return &Plotter{dir: dir}
}

type series struct {
	name   string
	values []float64
}

// Render plots t with the first column on the x axis and every numeric
// column after it as a series. It returns the file path.
func (p *Plotter) Render(kind, title string, t answer.Table) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = KindBar
	}
	if kind != KindLine && kind != KindBar && kind != KindScatter {
		return "", fmt.Errorf("%w: chart kind must be line, bar or scatter, got %q", domain.ErrInvalidRequest, kind)
	}

	xs, ys, err := columns(t)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.dir, 0o750); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(p.dir, "plot_"+uuid.NewString()+".html")
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	titleOpts := charts.WithTitleOpts(opts.Title{Title: title})
	switch kind {
	case KindLine:
		c := charts.NewLine()
		c.SetGlobalOptions(titleOpts)
		c.SetXAxis(xs)
		for _, s := range ys {
			data := make([]opts.LineData, len(s.values))
			for i, v := range s.values {
				data[i] = opts.LineData{Value: v}
			}
			c.AddSeries(s.name, data)
		}
		err = c.Render(f)
	case KindScatter:
		c := charts.NewScatter()
		c.SetGlobalOptions(titleOpts)
		c.SetXAxis(xs)
		for _, s := range ys {
			data := make([]opts.ScatterData, len(s.values))
			for i, v := range s.values {
				data[i] = opts.ScatterData{Value: v}
			}
			c.AddSeries(s.name, data)
		}
		err = c.Render(f)
	default:
		c := charts.NewBar()
		c.SetGlobalOptions(titleOpts)
		c.SetXAxis(xs)
		for _, s := range ys {
			data := make([]opts.BarData, len(s.values))
			for i, v := range s.values {
				data[i] = opts.BarData{Value: v}
			}
			c.AddSeries(s.name, data)
		}
		err = c.Render(f)
	}
	if err != nil {
		return "", fmt.Errorf("render %s chart: %w", kind, err)
	}
	return path, nil
}

// columns splits t into x labels and numeric series. Non-numeric cells in
// a numeric column plot as zero.
func columns(t answer.Table) ([]string, []series, error) {
	if len(t.Columns) < 2 || t.Empty() {
		return nil, nil, fmt.Errorf("%w: need an x column, a numeric column and at least one row", domain.ErrNoTabularResult)
	}

	xs := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if len(row) > 0 {
			xs[i] = fmt.Sprint(row[0])
		}
	}

	var ys []series
	for col := 1; col < len(t.Columns); col++ {
		s := series{name: t.Columns[col], values: make([]float64, len(t.Rows))}
		numeric := false
		for i, row := range t.Rows {
			if col >= len(row) {
				continue
			}
			if v, ok := toFloat(row[col]); ok {
				s.values[i] = v
				numeric = true
			}
		}
		if numeric {
			ys = append(ys, s)
		}
	}
	if len(ys) == 0 {
		return nil, nil, fmt.Errorf("%w: no numeric columns to plot", domain.ErrNoTabularResult)
	}
	return xs, ys, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
