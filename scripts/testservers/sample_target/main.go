// Command sample_target serves the endpoints the example profiles hit:
// /health/ and /health (JSON), / (HTML home page) and /admin/ (redirect to a
// login page). Optional latency and failure injection exercise thresholds.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"time"
)

const homePage = `<!doctype html>
<html><head><title>FKS Trading</title></head>
<body><h1>FKS Trading</h1><p>Sample target for vuramp.</p></body></html>
`

type target struct {
	maxLatency time.Duration
	failRate   float64
}

func main() {
	port := flag.Int("port", 8000, "Listening port")
	latency := flag.Duration("max-latency", 0, "Add a random delay up to this duration to every response")
	failRate := flag.Float64("fail-rate", 0, "Fraction of responses answered with 503 (0.0-1.0)")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}
	if *failRate < 0 || *failRate > 1 {
		log.Fatalf("fail-rate must be between 0 and 1")
	}

	t := &target{maxLatency: *latency, failRate: *failRate}
	addr := fmt.Sprintf(":%d", *port)
	log.Printf("sample target listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, t.routes()))
}

func (t *target) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/", t.wrap(handleHealth))
	mux.HandleFunc("/health", t.wrap(handleHealth))
	mux.HandleFunc("/admin/", t.wrap(handleAdmin))
	mux.HandleFunc("/admin/login/", t.wrap(handleLogin))
	mux.HandleFunc("/", t.wrap(handleHome))
	return mux
}

// wrap applies the configured latency and failure injection.
func (t *target) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t.maxLatency > 0 {
			time.Sleep(rand.N(t.maxLatency))
		}
		if t.failRate > 0 && rand.Float64() < t.failRate {
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(homePage))
}

func handleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/admin/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/admin/login/?next=/admin/", http.StatusFound)
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body><form method=post>login</form></body></html>\n"))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
