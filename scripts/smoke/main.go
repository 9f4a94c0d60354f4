// Command smoke probes a running deployment and verifies the response
// contract of the critical routes: status code, envelope shape, and the
// conflict-error taxonomy on the arbitration endpoints.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type probe struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	WantStatus int    `json:"want_status"`
	WantError  string `json:"want_error,omitempty"`
	Critical   bool   `json:"critical"`
}

type probeFile struct {
	Probes []probe `json:"probes"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type result struct {
	Probe    probe
	Status   int
	Err      error
	Duration time.Duration
}

func main() {
	var (
		baseURL    string
		probesPath string
		timeout    time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&probesPath, "probes", filepath.Join("scripts", "smoke", "probes.json"), "Path to JSON probe file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	probes, err := loadProbes(probesPath)
	if err != nil {
		log.Fatalf("failed to load probes: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var results []result
	failed := 0
	for _, p := range probes {
		res := runProbe(client, baseURL, p)
		if res.Err != nil && p.Critical {
			failed++
		}
		results = append(results, res)
	}

	printReport(results)
	fmt.Printf("Critical failures: %d of %d probes\n", failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}

func loadProbes(path string) ([]probe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file probeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Probes) == 0 {
		return nil, fmt.Errorf("no probes defined in %s", path)
	}
	return file.Probes, nil
}

func runProbe(client *http.Client, base string, p probe) result {
	res := result{Probe: p}

	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := p.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		res.Err = err
		return res
	}
	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	if p.WantStatus != 0 && resp.StatusCode != p.WantStatus {
		res.Err = fmt.Errorf("status %d, want %d", resp.StatusCode, p.WantStatus)
		return res
	}
	if resp.StatusCode == http.StatusNoContent {
		return res
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Err = fmt.Errorf("read body: %w", err)
		return res
	}
	res.Err = checkEnvelope(body, p)
	return res
}

// checkEnvelope enforces the response contract: success responses carry
// data without error, error responses carry a coded error without data.
func checkEnvelope(body []byte, p probe) error {
	// /health, /ready and /metrics are not enveloped.
	if !strings.HasPrefix(p.Path, "/api/") {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	if p.WantStatus >= 400 {
		if env.Error == nil {
			return fmt.Errorf("error response without error object")
		}
		if p.WantError != "" && env.Error.Code != p.WantError {
			return fmt.Errorf("error code %q, want %q", env.Error.Code, p.WantError)
		}
		return nil
	}
	if env.Error != nil {
		return fmt.Errorf("success response carries error %q", env.Error.Code)
	}
	return nil
}

func printReport(results []result) {
	fmt.Println("Smoke Report")
	fmt.Println("============")
	for _, res := range results {
		status := "OK"
		if res.Err != nil {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Probe.Method, res.Probe.Path)
		fmt.Printf("  Status: %d (%s) | Critical: %t\n", res.Status, res.Duration, res.Probe.Critical)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
		}
	}
}
