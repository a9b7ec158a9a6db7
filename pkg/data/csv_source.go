package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// CSVColumnMapping defines the column positions for a CSV bar file.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

var DefaultCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}

// CSVSource is a MarketDataSource backed by per-instrument CSV files.
// A cursor per instrument marks "now": GetWindow serves the trailing
// window ending at the cursor and Advance moves it one bar, which lets
// the engine replay a file tick by tick in dry runs and tests.
type CSVSource struct {
	mu      sync.Mutex
	format  CSVColumnMapping
	series  map[string][]types.OHLCV
	cursors map[string]int
}

func NewCSVSource() *CSVSource {
	return NewCSVSourceWithFormat(DefaultCSVFormat)
}

func NewCSVSourceWithFormat(format CSVColumnMapping) *CSVSource {
	return &CSVSource{
		format:  format,
		series:  make(map[string][]types.OHLCV),
		cursors: make(map[string]int),
	}
}

// Load reads an instrument's bar series from a CSV file and validates
// that timestamps are strictly increasing. The cursor starts at the
// last bar.
func (s *CSVSource) Load(instrument, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil { // header
		return err
	}

	var bars []types.OHLCV
	line := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("reading CSV at line %d: %w", line, err)
		}
		line++

		if len(record) < s.format.MinColumns {
			continue
		}
		timestamp, err := time.Parse(s.format.DateFormat, record[s.format.TimestampCol])
		if err != nil {
			continue
		}
		bar := types.OHLCV{
			Timestamp: timestamp,
			Open:      parseFloat(record[s.format.OpenCol]),
			High:      parseFloat(record[s.format.HighCol]),
			Low:       parseFloat(record[s.format.LowCol]),
			Close:     parseFloat(record[s.format.CloseCol]),
			Volume:    parseFloat(record[s.format.VolumeCol]),
		}
		if len(bars) > 0 && !bar.Timestamp.After(bars[len(bars)-1].Timestamp) {
			return fmt.Errorf("non-monotonic timestamp at line %d: %s", line, record[s.format.TimestampCol])
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return fmt.Errorf("no usable bars in %s", filename)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[instrument] = bars
	s.cursors[instrument] = len(bars) - 1
	return nil
}

// SetSeries installs an in-memory series, cursor at the last bar.
func (s *CSVSource) SetSeries(instrument string, bars []types.OHLCV) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[instrument] = bars
	s.cursors[instrument] = len(bars) - 1
}

// Rewind moves the cursor so that the first GetWindow serves exactly
// lookback bars, leaving the rest of the file for Advance to reveal.
func (s *CSVSource) Rewind(instrument string, lookback int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bars, ok := s.series[instrument]; ok && lookback-1 < len(bars) {
		s.cursors[instrument] = lookback - 1
	}
}

// Advance moves the cursor one bar forward. Returns false when the
// series is exhausted.
func (s *CSVSource) Advance(instrument string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bars, ok := s.series[instrument]
	if !ok || s.cursors[instrument] >= len(bars)-1 {
		return false
	}
	s.cursors[instrument]++
	return true
}

// GetWindow serves the trailing lookback bars ending at the cursor.
func (s *CSVSource) GetWindow(_ context.Context, instrument string, lookback int) ([]types.OHLCV, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bars, ok := s.series[instrument]
	if !ok {
		return nil, fmt.Errorf("%w: no series loaded for %s", ErrInsufficientHistory, instrument)
	}
	end := s.cursors[instrument] + 1
	if end < lookback {
		return nil, fmt.Errorf("%w: %s has %d bars, need %d", ErrInsufficientHistory, instrument, end, lookback)
	}

	window := make([]types.OHLCV, lookback)
	copy(window, bars[end-lookback:end])
	return window, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
