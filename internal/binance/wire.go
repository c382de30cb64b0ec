package binance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Wire shapes. Numeric fields arrive as quoted strings or bare numbers,
// so they are kept raw and parsed per field.

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		ContractType string `json:"contractType"`
		QuoteAsset   string `json:"quoteAsset"`
		Status       string `json:"status"`
	} `json:"symbols"`
}

type ratioEntry struct {
	Symbol       string          `json:"symbol"`
	LongAccount  json.RawMessage `json:"longAccount"`
	ShortAccount json.RawMessage `json:"shortAccount"`
	Timestamp    json.RawMessage `json:"timestamp"`
}

type openInterestEntry struct {
	Symbol               string          `json:"symbol"`
	SumOpenInterestValue json.RawMessage `json:"sumOpenInterestValue"`
	Timestamp            json.RawMessage `json:"timestamp"`
}

type premiumIndexResponse struct {
	Symbol          string          `json:"symbol"`
	MarkPrice       json.RawMessage `json:"markPrice"`
	LastFundingRate json.RawMessage `json:"lastFundingRate"`
}

type ticker24hResponse struct {
	Symbol      string          `json:"symbol"`
	Volume      json.RawMessage `json:"volume"`
	QuoteVolume json.RawMessage `json:"quoteVolume"`
}

type depthResponse struct {
	Bids [][]json.RawMessage `json:"bids"`
	Asks [][]json.RawMessage `json:"asks"`
}

// klineFields is the minimum row width: open time through quote volume.
const klineFields = 8

// parseFloat decodes a quoted or bare JSON number.
func parseFloat(raw json.RawMessage) (float64, error) {
	s, err := rawScalar(raw)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformed, s)
	}
	return v, nil
}

// parseInt decodes a quoted or bare JSON integer.
func parseInt(raw json.RawMessage) (int64, error) {
	s, err := rawScalar(raw)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformed, s)
		}
		return int64(f), nil
	}
	return v, nil
}

// optionalFloat returns nil for absent, null or unparsable values.
func optionalFloat(raw json.RawMessage) *float64 {
	v, err := parseFloat(raw)
	if err != nil {
		return nil
	}
	return &v
}

func rawScalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: missing value", ErrMalformed)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return s, nil
	}
	return string(raw), nil
}

func parseLevels(rows [][]json.RawMessage) ([]levelPair, error) {
	out := make([]levelPair, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: level %d has %d fields", ErrMalformed, i, len(row))
		}
		price, err := parseFloat(row[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		qty, err := parseFloat(row[1])
		if err != nil {
			return nil, fmt.Errorf("level %d quantity: %w", i, err)
		}
		out = append(out, levelPair{price: price, qty: qty})
	}
	return out, nil
}

type levelPair struct {
	price float64
	qty   float64
}
