// Package feed fetches hydrometric observations from the Allerta Meteo
// Emilia-Romagna sensor API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/river-alert-service/internal/domain"
)

// hydroVariable selects the hydrometric level variable (B13215) in the
// upstream API's variable addressing scheme.
const hydroVariable = "254,0,0/1,-,-,-/B13215"

// seedTime is any historical timestamp accepted by the values endpoint; the
// response always carries the network's current latest time alongside the
// station list, which is what LatestTime extracts.
const seedTime = 1726667100000

// Client calls the sensor network HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a feed client with a per-request timeout on the shared
// HTTP client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// valueEntry is one element of the mixed array returned by the values
// endpoint: a single time entry carrying only "time", interleaved with data
// entries carrying station metadata.
type valueEntry struct {
	Time string `json:"time"`

	IDStazione  string  `json:"idstazione"`
	Ordinamento int     `json:"ordinamento"`
	Nomestaz    string  `json:"nomestaz"`
	Lon         string  `json:"lon"`
	Lat         string  `json:"lat"`
	Soglia1     float64 `json:"soglia1"`
	Soglia2     float64 `json:"soglia2"`
	Soglia3     float64 `json:"soglia3"`
}

// LatestTime returns the network's most recent reading time in epoch
// milliseconds.
func (c *Client) LatestTime(ctx context.Context) (int64, error) {
	entries, err := c.fetchValues(ctx, seedTime)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if entry.Time != "" {
			ts, err := strconv.ParseInt(entry.Time, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse feed time %q: %w", entry.Time, err)
			}
			return ts, nil
		}
	}
	return 0, fmt.Errorf("no time entry in feed response")
}

// Stations returns one observation skeleton per station known to the network
// at the given time: identity, metadata, and thresholds, with the reading
// itself still unknown until StationReading fills it in.
func (c *Client) Stations(ctx context.Context, timestamp int64) ([]domain.Observation, error) {
	entries, err := c.fetchValues(ctx, timestamp)
	if err != nil {
		return nil, err
	}

	observations := make([]domain.Observation, 0, len(entries))
	for _, entry := range entries {
		if entry.Time != "" {
			continue
		}
		observations = append(observations, domain.Observation{
			StationID:  entry.IDStazione,
			Name:       entry.Nomestaz,
			OrderIndex: entry.Ordinamento,
			Lon:        entry.Lon,
			Lat:        entry.Lat,
			Thresholds: domain.Thresholds{
				Yellow: entry.Soglia1,
				Orange: entry.Soglia2,
				Red:    entry.Soglia3,
			},
			Value: domain.UnknownValue,
		})
	}

	c.logger.Debug("fetched station list", "stations", len(observations), "time", timestamp)
	return observations, nil
}

// seriesEntry is one point of a station's time series. The upstream delivers
// "t" as either a JSON number or a numeric string, and omits "v" for missing
// readings.
type seriesEntry struct {
	T flexInt64 `json:"t"`
	V *float64  `json:"v"`
}

// StationReading returns the latest reading of a station's time series as
// (timestamp, value). An empty series yields a zero timestamp, which the
// store's conditional write discards; a missing value yields the unknown
// sentinel.
func (c *Client) StationReading(ctx context.Context, stationID string) (int64, float64, error) {
	u := fmt.Sprintf("%s/o/api/allerta/get-time-series/?stazione=%s&variabile=%s", c.baseURL, stationID, hydroVariable)

	var entries []seriesEntry
	if err := c.getJSON(ctx, u, &entries); err != nil {
		return 0, domain.UnknownValue, fmt.Errorf("fetch series for station %s: %w", stationID, err)
	}

	var latest *seriesEntry
	for i := range entries {
		if latest == nil || entries[i].T > latest.T {
			latest = &entries[i]
		}
	}
	if latest == nil {
		return 0, domain.UnknownValue, nil
	}

	value := domain.UnknownValue
	if latest.V != nil {
		value = *latest.V
	}
	return int64(latest.T), value, nil
}

func (c *Client) fetchValues(ctx context.Context, timestamp int64) ([]valueEntry, error) {
	u := fmt.Sprintf("%s/o/api/allerta/get-sensor-values-no-time?variabile=%s&time=%d", c.baseURL, hydroVariable, timestamp)

	var entries []valueEntry
	if err := c.getJSON(ctx, u, &entries); err != nil {
		return nil, fmt.Errorf("fetch sensor values: %w", err)
	}
	return entries, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("feed API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// flexInt64 decodes from a JSON number or a string holding a number.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("numeric string: %w", err)
		}
		*f = flexInt64(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt64(n)
	return nil
}
