package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/river-alert-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const stationKeyPrefix = "station:"

// Stations reads and writes station records.
type Stations struct {
	rdb *redis.Client
}

// NewStations creates the station record store.
func NewStations(rdb *redis.Client) *Stations {
	return &Stations{rdb: rdb}
}

// persistScript applies one observation iff the record is absent or the
// incoming timestamp is strictly newer. On apply it overwrites timestamp and
// value, writes every metadata field only if absent, and upgrades the red
// threshold from the unknown sentinel to a known incoming value. Returns 1
// when applied, 0 when the write was stale.
//
// KEYS[1] station record
// ARGV[1..2] timestamp, value
// ARGV[3..9] id, order_index, lon, lat, threshold_yellow, threshold_orange, threshold_red
// ARGV[10..12] basin, province, municipality (skipped when empty)
// ARGV[13] unknown sentinel
var persistScript = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'timestamp')
if stored and tonumber(ARGV[1]) <= tonumber(stored) then
  return 0
end
redis.call('HSET', KEYS[1], 'timestamp', ARGV[1], 'value', ARGV[2])
redis.call('HSETNX', KEYS[1], 'id', ARGV[3])
redis.call('HSETNX', KEYS[1], 'order_index', ARGV[4])
redis.call('HSETNX', KEYS[1], 'lon', ARGV[5])
redis.call('HSETNX', KEYS[1], 'lat', ARGV[6])
redis.call('HSETNX', KEYS[1], 'threshold_yellow', ARGV[7])
redis.call('HSETNX', KEYS[1], 'threshold_orange', ARGV[8])
local red = redis.call('HGET', KEYS[1], 'threshold_red')
if not red then
  redis.call('HSET', KEYS[1], 'threshold_red', ARGV[9])
elseif tonumber(red) == tonumber(ARGV[13]) and tonumber(ARGV[9]) ~= tonumber(ARGV[13]) then
  redis.call('HSET', KEYS[1], 'threshold_red', ARGV[9])
end
if ARGV[10] ~= '' then redis.call('HSETNX', KEYS[1], 'basin', ARGV[10]) end
if ARGV[11] ~= '' then redis.call('HSETNX', KEYS[1], 'province', ARGV[11]) end
if ARGV[12] ~= '' then redis.call('HSETNX', KEYS[1], 'municipality', ARGV[12]) end
return 1
`)

// PersistObservation conditionally upserts one observation into the station
// record keyed by its name. Duplicate and out-of-order observations are the
// expected case, not an error: they return (false, nil) with no effect.
func (s *Stations) PersistObservation(ctx context.Context, obs domain.Observation) (bool, error) {
	if obs.Name == "" {
		return false, fmt.Errorf("observation has empty station name")
	}

	applied, err := persistScript.Run(ctx, s.rdb,
		[]string{stationKeyPrefix + obs.Name},
		obs.Timestamp,
		formatFloat(obs.Value),
		obs.StationID,
		obs.OrderIndex,
		obs.Lon,
		obs.Lat,
		formatFloat(obs.Thresholds.Yellow),
		formatFloat(obs.Thresholds.Orange),
		formatFloat(obs.Thresholds.Red),
		obs.Basin,
		obs.Province,
		obs.Municipality,
		formatFloat(domain.UnknownValue),
	).Int()
	if err != nil {
		return false, fmt.Errorf("persist observation for %s: %w", obs.Name, err)
	}
	return applied == 1, nil
}

// Get returns the station record, or nil when no record exists.
func (s *Stations) Get(ctx context.Context, name string) (*domain.Station, error) {
	fields, err := s.rdb.HGetAll(ctx, stationKeyPrefix+name).Result()
	if err != nil {
		return nil, fmt.Errorf("get station %s: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	st, err := parseStation(name, fields)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", name, err)
	}
	return &st, nil
}

// List returns all known station names, sorted and deduplicated. The scan
// pages through the keyspace with a cursor, matching the store boundary's
// continuation-token pagination.
func (s *Stations) List(ctx context.Context) ([]string, error) {
	var (
		names  []string
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, stationKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan stations: %w", err)
		}
		for _, key := range keys {
			names = append(names, strings.TrimPrefix(key, stationKeyPrefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Strings(names)
	// SCAN may return a key more than once.
	names = dedupSorted(names)
	return names, nil
}

func parseStation(name string, fields map[string]string) (domain.Station, error) {
	timestamp, err := parseInt64Field(fields, "timestamp")
	if err != nil {
		return domain.Station{}, err
	}
	orderIndex, err := parseInt64Field(fields, "order_index")
	if err != nil {
		return domain.Station{}, err
	}
	value, err := parseFloatField(fields, "value")
	if err != nil {
		return domain.Station{}, err
	}
	yellow, err := parseFloatField(fields, "threshold_yellow")
	if err != nil {
		return domain.Station{}, err
	}
	orange, err := parseFloatField(fields, "threshold_orange")
	if err != nil {
		return domain.Station{}, err
	}
	red, err := parseFloatField(fields, "threshold_red")
	if err != nil {
		return domain.Station{}, err
	}

	return domain.Station{
		Name:         name,
		StationID:    fields["id"],
		OrderIndex:   int(orderIndex),
		Lon:          fields["lon"],
		Lat:          fields["lat"],
		Thresholds:   domain.Thresholds{Yellow: yellow, Orange: orange, Red: red},
		Basin:        fields["basin"],
		Province:     fields["province"],
		Municipality: fields["municipality"],
		Timestamp:    timestamp,
		Value:        value,
	}, nil
}

func parseInt64Field(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("missing field %q", name)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return n, nil
}

func parseFloatField(fields map[string]string, name string) (float64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("missing field %q", name)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return f, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func dedupSorted(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}
