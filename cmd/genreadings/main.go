// Command genreadings serves a local stand-in for the Allerta Meteo sensor
// API so the fetcher can run without reaching the real network. It exposes
// the same two endpoints the feed client calls and generates a slow random
// walk per station, with a few stations held above their orange threshold to
// exercise alert delivery.
//
// Usage:
//
//	go run ./cmd/genreadings -addr :9080 -stations 25
//	FEED_BASE_URL=http://localhost:9080 go run ./cmd/fetcher
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// stepMillis is the reading cadence of the real network: one point every
// 15 minutes.
const stepMillis = 15 * 60 * 1000

type station struct {
	ID       string
	Name     string
	Order    int
	Lon      string
	Lat      string
	Soglia1  float64
	Soglia2  float64
	Soglia3  float64
	base     float64
	phase    float64
	flooding bool
}

type generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	stations []station
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":9080", "listen address")
	count := flag.Int("stations", 25, "number of stations to simulate")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if *count <= 0 {
		return fmt.Errorf("-stations must be positive")
	}

	gen := newGenerator(*count, *seed)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /o/api/allerta/get-sensor-values-no-time", gen.handleValues)
	mux.HandleFunc("GET /o/api/allerta/get-time-series/", gen.handleSeries)

	log.Printf("serving %d simulated stations on %s", *count, *addr)
	return http.ListenAndServe(*addr, mux)
}

var riverNames = []string{
	"Savio", "Ronco", "Montone", "Lamone", "Senio", "Santerno",
	"Sillaro", "Idice", "Reno", "Samoggia", "Panaro", "Secchia",
	"Enza", "Parma", "Taro", "Trebbia", "Nure", "Arda",
}

func newGenerator(count int, seed int64) *generator {
	rng := rand.New(rand.NewSource(seed))
	stations := make([]station, 0, count)
	for i := 0; i < count; i++ {
		river := riverNames[i%len(riverNames)]
		name := fmt.Sprintf("%s a monte %d", river, i/len(riverNames)+1)
		if i < len(riverNames) {
			name = river
		}
		s := station{
			ID:      fmt.Sprintf("-/%d,0,0/1", 254+i),
			Name:    name,
			Order:   i + 1,
			Lon:     strconv.FormatFloat(11.0+rng.Float64()*2.0, 'f', 5, 64),
			Lat:     strconv.FormatFloat(44.0+rng.Float64()*1.0, 'f', 5, 64),
			Soglia1: 1.0 + rng.Float64(),
			base:    0.3 + rng.Float64()*0.5,
			phase:   rng.Float64() * 2 * math.Pi,
		}
		s.Soglia2 = s.Soglia1 + 0.8 + rng.Float64()
		s.Soglia3 = s.Soglia2 + 1.0 + rng.Float64()

		// A few stations report no red threshold, like parts of the real
		// network.
		if i%9 == 4 {
			s.Soglia3 = -9999.0
		}
		// One station in ten runs high enough to trip alerts.
		if i%10 == 3 {
			s.flooding = true
		}
		stations = append(stations, s)
	}
	return &generator{rng: rng, stations: stations}
}

// latestStep returns the most recent reading time, aligned to the cadence.
func latestStep() int64 {
	now := time.Now().UnixMilli()
	return now - now%stepMillis
}

// level produces the simulated reading for a station at a given step.
func (g *generator) level(s *station, stepTime int64) float64 {
	t := float64(stepTime/stepMillis) / 12.0
	v := s.base + 0.2*math.Sin(t+s.phase)
	if s.flooding {
		v += s.Soglia2 + 0.5
	}
	g.mu.Lock()
	v += g.rng.Float64() * 0.05
	g.mu.Unlock()
	return math.Round(v*100) / 100
}

func (g *generator) handleValues(w http.ResponseWriter, _ *http.Request) {
	entries := make([]map[string]any, 0, len(g.stations)+1)
	entries = append(entries, map[string]any{
		"time": strconv.FormatInt(latestStep(), 10),
	})
	for i := range g.stations {
		s := &g.stations[i]
		entries = append(entries, map[string]any{
			"idstazione":  s.ID,
			"ordinamento": s.Order,
			"nomestaz":    s.Name,
			"lon":         s.Lon,
			"lat":         s.Lat,
			"soglia1":     s.Soglia1,
			"soglia2":     s.Soglia2,
			"soglia3":     s.Soglia3,
		})
	}
	writeJSON(w, entries)
}

func (g *generator) handleSeries(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("stazione")
	var target *station
	for i := range g.stations {
		if g.stations[i].ID == stationID {
			target = &g.stations[i]
			break
		}
	}
	if target == nil {
		writeJSON(w, []map[string]any{})
		return
	}

	// The last eight points, oldest first, with an occasional gap.
	end := latestStep()
	points := make([]map[string]any, 0, 8)
	for i := 7; i >= 0; i-- {
		stepTime := end - int64(i)*stepMillis
		point := map[string]any{"t": stepTime}
		if i != 5 {
			point["v"] = g.level(target, stepTime)
		}
		points = append(points, point)
	}
	writeJSON(w, points)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
