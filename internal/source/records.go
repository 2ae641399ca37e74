package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// RatingRecord is one row of the ratings-by-area endpoint.
type RatingRecord struct {
	Area   interface{} `json:"area"`
	Rating *float64    `json:"rating"`
}

// ViolationRecord is one row of the violations-by-ZIP endpoint.
// ZipCode may be absent.
type ViolationRecord struct {
	ZipCode   interface{} `json:"zipCode"`
	Violation *float64    `json:"violation"`
}

type ratingsEnvelope struct {
	RatingsData []RatingRecord `json:"ratingsData"`
}

// Ratings downloads the rating dataset. The endpoint wraps rows in a
// "ratingsData" object; a bare array is accepted as well.
func (c *Client) Ratings(ctx context.Context) ([]RatingRecord, error) {
	var raw json.RawMessage
	if err := c.decode(ctx, c.loc.Ratings, &raw); err != nil {
		return nil, err
	}
	return DecodeRatings(raw)
}

// Violations downloads the violation-count dataset.
func (c *Client) Violations(ctx context.Context) ([]ViolationRecord, error) {
	var rows []ViolationRecord
	if err := c.decode(ctx, c.loc.Violations, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DecodeRatings parses either response shape of the ratings endpoint.
func DecodeRatings(raw []byte) ([]RatingRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []RatingRecord
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("decode ratings: %w", err)
		}
		return rows, nil
	}

	var env ratingsEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode ratings: %w", err)
	}
	return env.RatingsData, nil
}
