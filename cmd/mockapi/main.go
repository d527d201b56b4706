// Command mockapi serves fake geocoder, irradiance and LLM endpoints so the
// advisor can run locally without network access or API keys. Point
// geocoder.baseURL, irradiance.openMeteoURL, irradiance.solcastURL and
// llm.baseURL at it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type city struct {
	name     string
	lat, lon float64
}

var cities = []city{
	{"Lahore", 31.5656, 74.3142},
	{"Karachi", 24.8608, 67.0104},
	{"Islamabad", 33.6938, 73.0652},
	{"Multan", 30.1979, 71.4725},
	{"Quetta", 30.1841, 67.0014},
	{"Peshawar", 34.0151, 71.5249},
	{"Faisalabad", 31.4154, 73.0897},
}

// appliance loads in kWh/day used by the fake extraction model
var appliances = []struct {
	pattern *regexp.Regexp
	kwh     float64
}{
	{regexp.MustCompile(`(?i)\b(ac|acs|air ?condition\w*)\b`), 9},
	{regexp.MustCompile(`(?i)\b(fridge|refrigerator|freezer)s?\b`), 2},
	{regexp.MustCompile(`(?i)\bfans?\b`), 0.6},
	{regexp.MustCompile(`(?i)\b(light|bulb|lamp)s?\b`), 0.3},
	{regexp.MustCompile(`(?i)\b(tv|television)s?\b`), 0.5},
	{regexp.MustCompile(`(?i)\b(pump|motor)s?\b`), 1.5},
	{regexp.MustCompile(`(?i)\b(iron|washing machine)\b`), 0.8},
}

type mock struct {
	rng     *rand.Rand
	latency time.Duration
}

func main() {
	port := flag.Int("port", 8090, "Mock upstream port")
	latency := flag.Duration("latency", 0, "Artificial delay added to every response")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for irradiance jitter")
	flag.Parse()

	m := &mock{rng: rand.New(rand.NewSource(*seed)), latency: *latency}
	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock upstreams on %s (geocoder /search, open-meteo /v1/forecast, solcast /world_radiation/forecasts, anthropic /v1/messages)", addr)
	log.Fatal(http.ListenAndServe(addr, m.routes()))
}

func (m *mock) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", m.search)
	mux.HandleFunc("/v1/forecast", m.openMeteo)
	mux.HandleFunc("/world_radiation/forecasts", m.solcast)
	mux.HandleFunc("/v1/messages", m.messages)
	return m.delay(mux)
}

func (m *mock) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.latency > 0 {
			time.Sleep(m.latency)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func jitter(base, pct float64, rng *rand.Rand) float64 {
	return base + base*pct*(rng.Float64()*2-1)
}

// ── Geocoder ──
func (m *mock) search(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("User-Agent") == "" {
		http.Error(w, "User-Agent required", http.StatusForbidden)
		return
	}
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	results := []map[string]string{}
	for _, c := range cities {
		if q != "" && strings.Contains(q, strings.ToLower(c.name)) {
			results = append(results, map[string]string{
				"lat":          strconv.FormatFloat(c.lat, 'f', 7, 64),
				"lon":          strconv.FormatFloat(c.lon, 'f', 7, 64),
				"display_name": c.name + ", Pakistan",
			})
			break
		}
	}
	writeJSON(w, results)
}

func coords(r *http.Request) (lat, lon float64, ok bool) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	return lat, lon, err1 == nil && err2 == nil
}

// baseIrradiance is a rough kWh/m²/day that falls away from the tropics.
func baseIrradiance(lat float64) float64 {
	return math.Max(1.5, 6.2-math.Abs(math.Abs(lat)-23.5)*0.08)
}

// ── Open-Meteo ──
func (m *mock) openMeteo(w http.ResponseWriter, r *http.Request) {
	lat, _, ok := coords(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"error": true, "reason": "latitude and longitude are required"})
		return
	}
	base := baseIrradiance(lat)
	days := make([]string, 7)
	sums := make([]float64, 7)
	for i := range sums {
		days[i] = time.Now().AddDate(0, 0, i).Format("2006-01-02")
		sums[i] = math.Round(jitter(base, 0.15, m.rng)*3.6*100) / 100 // MJ/m²
	}
	writeJSON(w, map[string]any{
		"latitude":    lat,
		"timezone":    "Asia/Karachi",
		"daily":       map[string]any{"time": days, "shortwave_radiation_sum": sums},
		"daily_units": map[string]string{"shortwave_radiation_sum": "MJ/m²"},
	})
}

// ── Solcast ──
func (m *mock) solcast(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"response_status": map[string]string{"error_code": "Unauthorized"}})
		return
	}
	lat, _, ok := coords(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
	if hours <= 0 {
		hours = 168
	}
	// Half-hourly GHI following a sine between 06:00 and 18:00 whose daily
	// integral matches baseIrradiance.
	daily := baseIrradiance(lat)
	peak := daily * 1000 * math.Pi / 24
	start := time.Now().Truncate(30 * time.Minute)
	forecasts := make([]map[string]any, 0, hours*2)
	for i := 0; i < hours*2; i++ {
		t := start.Add(time.Duration(i) * 30 * time.Minute)
		h := float64(t.Hour()) + float64(t.Minute())/60
		ghi := 0.0
		if h > 6 && h < 18 {
			ghi = jitter(peak*math.Sin(math.Pi*(h-6)/12), 0.1, m.rng)
		}
		forecasts = append(forecasts, map[string]any{
			"ghi":        math.Round(ghi),
			"period_end": t.Add(30 * time.Minute).UTC().Format(time.RFC3339),
			"period":     "PT30M",
		})
	}
	writeJSON(w, map[string]any{"forecasts": forecasts})
}

// ── Anthropic Messages ──
type messageRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func (m *mock) messages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("X-Api-Key") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"type": "error", "error": map[string]string{"type": "authentication_error", "message": "missing x-api-key"}})
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"type": "error", "error": map[string]string{"type": "invalid_request_error", "message": err.Error()}})
		return
	}

	prompt := ""
	if len(req.Messages) > 0 {
		prompt = promptText(req.Messages[len(req.Messages)-1].Content)
	}
	var reply string
	if strings.Contains(prompt, "return ONLY a number") {
		reply = estimateDaily(prompt)
	} else {
		reply = "For a typical home here, a 5 kW hybrid system with about 12 monocrystalline panels, " +
			"a 5 kW inverter and a 10 kWh lithium battery covers daytime load and evening backup. " +
			"Expect roughly 20 kWh of generation on a clear day."
	}

	writeJSON(w, map[string]any{
		"id":            fmt.Sprintf("msg_mock_%d", time.Now().UnixNano()),
		"type":          "message",
		"role":          "assistant",
		"model":         req.Model,
		"content":       []map[string]string{{"type": "text", "text": reply}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]int{"input_tokens": len(prompt) / 4, "output_tokens": len(reply) / 4},
	})
}

// promptText accepts both the string and the block-list forms of content.
func promptText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []struct {
		Text string `json:"text"`
	}
	json.Unmarshal(raw, &blocks)
	var b strings.Builder
	for _, bl := range blocks {
		b.WriteString(bl.Text)
	}
	return b.String()
}

var countPattern = regexp.MustCompile(`(?i)\b(\d+|one|two|three|four|five)\s+(\w+(?:\s\w+)?)`)

var words = map[string]float64{"one": 1, "two": 2, "three": 3, "four": 4, "five": 5}

// estimateDaily returns a kWh/day figure for the appliance text after
// "Text:", or "unknown" when nothing is recognized.
func estimateDaily(prompt string) string {
	text := prompt
	if i := strings.LastIndex(prompt, "Text:"); i >= 0 {
		text = prompt[i+len("Text:"):]
	}

	total := 0.0
	for _, a := range appliances {
		if !a.pattern.MatchString(text) {
			continue
		}
		n := 1.0
		for _, m := range countPattern.FindAllStringSubmatch(text, -1) {
			if a.pattern.MatchString(m[2]) {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					n = v
				} else {
					n = words[strings.ToLower(m[1])]
				}
				break
			}
		}
		total += n * a.kwh
	}
	if total == 0 {
		return "unknown"
	}
	return strconv.FormatFloat(math.Round(total*10)/10, 'f', -1, 64)
}
