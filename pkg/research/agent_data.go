package research

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dd0wney/agentgraph/pkg/events"
)

// pdfExcerptChars bounds the extracted text quoted in a result
const pdfExcerptChars = 500

// ErrUnsupportedFile is returned for uploads no processor understands
var ErrUnsupportedFile = errors.New("unsupported file type")

// DataAgent summarizes uploaded CSV, PDF and plain-text files
type DataAgent struct {
	em Emitter
}

// NewDataAgent creates the Data Processing agent
func NewDataAgent(em Emitter) *DataAgent {
	return &DataAgent{em: em}
}

func (a *DataAgent) Name() string { return events.AgentDataProcessing.Label() }

func (a *DataAgent) Act(ctx context.Context, task Task) (string, error) {
	name := "<none>"
	if task.File != nil {
		name = task.File.Name
	}

	return step(ctx, a.em, a.Name(), "Processing file: "+name,
		func() (string, error) {
			if task.File == nil {
				return "", errors.New("no file given")
			}
			return processFile(task.File)
		},
		func(err error) string { return fmt.Sprintf("Error processing file %s: %v", name, err) })
}

func processFile(f *File) (string, error) {
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv":
		summary, err := describeCSV(f.Data)
		if err != nil {
			return "", err
		}
		return "Data summary:\n" + summary, nil
	case ".pdf":
		text, err := extractPDFText(f.Data)
		if err != nil {
			return "", err
		}
		return "Extracted text from PDF: " + truncateRunes(text, pdfExcerptChars) + "...", nil
	case ".txt", ".md", ".text":
		if !utf8.Valid(f.Data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedFile, f.Name)
		}
		text := strings.Join(strings.Fields(string(f.Data)), " ")
		return "Extracted text: " + truncateRunes(text, pdfExcerptChars), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, f.Name)
	}
}

// ColumnStats is the describe() row set for one numeric column
type ColumnStats struct {
	Name   string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// describeCSV reads a CSV with a header row and summarizes its numeric columns
func describeCSV(data []byte) (string, error) {
	stats, rows, cols, err := csvStats(data)
	if err != nil {
		return "", err
	}
	if len(stats) == 0 {
		return fmt.Sprintf("%d rows, %d columns, no numeric columns", rows, cols), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d rows, %d columns\n", rows, cols)
	for _, s := range stats {
		fmt.Fprintf(&b, "%s: count=%d mean=%s std=%s min=%s 25%%=%s 50%%=%s 75%%=%s max=%s\n",
			s.Name, s.Count, num(s.Mean), num(s.Std), num(s.Min), num(s.Q1), num(s.Median), num(s.Q3), num(s.Max))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func csvStats(data []byte) (stats []ColumnStats, rows, cols int, err error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, 0, 0, errors.New("empty CSV")
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read CSV header: %w", err)
	}
	cols = len(header)

	values := make([][]float64, cols)
	numeric := make([]bool, cols)
	for i := range numeric {
		numeric[i] = true
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("read CSV row %d: %w", rows+2, err)
		}
		rows++
		for i := 0; i < cols && i < len(rec); i++ {
			field := strings.TrimSpace(rec[i])
			if field == "" || !numeric[i] {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				numeric[i] = false
				values[i] = nil
				continue
			}
			values[i] = append(values[i], v)
		}
	}

	for i, name := range header {
		if !numeric[i] || len(values[i]) == 0 {
			continue
		}
		stats = append(stats, describe(strings.TrimSpace(name), values[i]))
	}
	return stats, rows, cols, nil
}

func describe(name string, x []float64) ColumnStats {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	s := ColumnStats{
		Name:   name,
		Count:  len(x),
		Mean:   stat.Mean(x, nil),
		Min:    floats.Min(x),
		Max:    floats.Max(x),
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	if len(x) > 1 {
		s.Std = stat.StdDev(x, nil)
	}
	return s
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// extractPDFText concatenates the plain text of every page
func extractPDFText(data []byte) (text string, err error) {
	// The PDF parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var parts []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		parts = append(parts, pageText)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

var (
	positiveWords = map[string]bool{
		"good": true, "great": true, "excellent": true, "positive": true, "benefit": true,
		"improve": true, "improved": true, "success": true, "successful": true, "gain": true,
		"growth": true, "strong": true, "efficient": true, "promising": true,
	}
	negativeWords = map[string]bool{
		"bad": true, "poor": true, "negative": true, "risk": true, "decline": true,
		"loss": true, "fail": true, "failure": true, "weak": true, "problem": true,
		"concern": true, "costly": true, "harm": true,
	}
)

// Sentiment classifies text by counting positive and negative keywords
func Sentiment(text string) string {
	score := 0
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		switch {
		case positiveWords[w]:
			score++
		case negativeWords[w]:
			score--
		}
	}
	switch {
	case score > 0:
		return "Positive"
	case score < 0:
		return "Negative"
	default:
		return "Neutral"
	}
}

// SentimentAgent labels the text a previous step produced
type SentimentAgent struct {
	em Emitter
}

// NewSentimentAgent creates the Sentiment Analysis agent
func NewSentimentAgent(em Emitter) *SentimentAgent {
	return &SentimentAgent{em: em}
}

func (a *SentimentAgent) Name() string { return events.AgentSentimentAnalysis.Label() }

func (a *SentimentAgent) Act(ctx context.Context, task Task) (string, error) {
	return step(ctx, a.em, a.Name(), "Analyzing sentiment for the provided text.",
		func() (string, error) { return "Sentiment analysis result: " + Sentiment(task.Text), nil },
		func(err error) string { return fmt.Sprintf("Error analyzing sentiment: %v", err) })
}
