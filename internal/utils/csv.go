package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

var csvHeader = []string{"open_time", "close_time", "open", "high", "low", "close", "volume"}

// WriteSeriesToCSV saves a bar series to a CSV file. The symbol and timeframe
// are encoded in the filename by the callers, not in the rows.
func WriteSeriesToCSV(series domain.Series, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", filename, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write(csvHeader)
	for _, k := range series.Klines {
		writer.Write([]string{
			k.OpenTime.UTC().Format(time.RFC3339),
			k.CloseTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(k.Open, 'f', -1, 64),
			strconv.FormatFloat(k.High, 'f', -1, 64),
			strconv.FormatFloat(k.Low, 'f', -1, 64),
			strconv.FormatFloat(k.Close, 'f', -1, 64),
			strconv.FormatFloat(k.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// ReadSeriesFromCSV loads a bar series previously written by
// WriteSeriesToCSV. Symbol and timeframe are supplied by the caller.
func ReadSeriesFromCSV(filename, symbol string, tf domain.Timeframe) (domain.Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return domain.Series{}, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return domain.Series{}, fmt.Errorf("cannot parse %s: %w: %w", filename, ports.ErrData, err)
	}
	if len(rows) == 0 {
		return domain.Series{Symbol: symbol, Timeframe: tf}, nil
	}

	series := domain.Series{
		Symbol:    symbol,
		Timeframe: tf,
		Klines:    make([]domain.Kline, 0, len(rows)-1),
	}
	for i, row := range rows[1:] { // skip header
		k, err := klineFromRow(row)
		if err != nil {
			return domain.Series{}, fmt.Errorf("row %d of %s: %w: %w", i+2, filename, ports.ErrData, err)
		}
		series.Klines = append(series.Klines, k)
	}
	return series, nil
}

func klineFromRow(row []string) (domain.Kline, error) {
	if len(row) != len(csvHeader) {
		return domain.Kline{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}
	openTime, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return domain.Kline{}, fmt.Errorf("bad open_time: %w", err)
	}
	closeTime, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return domain.Kline{}, fmt.Errorf("bad close_time: %w", err)
	}
	prices := make([]float64, 5)
	for i, col := range row[2:] {
		prices[i], err = strconv.ParseFloat(col, 64)
		if err != nil {
			return domain.Kline{}, fmt.Errorf("bad %s: %w", csvHeader[i+2], err)
		}
	}
	return domain.Kline{
		OpenTime:  openTime,
		CloseTime: closeTime,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
	}, nil
}
