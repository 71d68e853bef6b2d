// Command paritycheck replays read-only requests against both the legacy
// platform and this service and reports response differences. It is used
// during the cutover to verify endpoint parity before traffic is switched.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type endpoint struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type manifest struct {
	Endpoints []endpoint `json:"endpoints"`
}

type result struct {
	Endpoint       endpoint
	NewStatus      int
	LegacyStatus   int
	StatusMatch    bool
	BodyMatch      bool
	Err            error
	NewDuration    time.Duration
	LegacyDuration time.Duration
}

// Fields that legitimately differ between the two stacks and must not count
// as a diff.
var volatileFields = map[string]bool{
	"computed_at": true,
	"created_at":  true,
	"updated_at":  true,
	"request_id":  true,
}

func main() {
	var (
		newBase      string
		legacyBase   string
		manifestPath string
		token        string
		timeout      time.Duration
	)

	flag.StringVar(&newBase, "new-base", "http://localhost:8080", "base URL of this service")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:5000", "base URL of the legacy platform")
	flag.StringVar(&manifestPath, "endpoints", filepath.Join("scripts", "paritycheck", "endpoints.json"), "path to the endpoint manifest")
	flag.StringVar(&token, "token", os.Getenv("PARITY_TOKEN"), "bearer token sent to both services")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "per-request timeout")
	flag.Parse()

	endpoints, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("load endpoint manifest: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var results []result
	breaking, optional := 0, 0
	for _, ep := range endpoints {
		res := compare(client, newBase, legacyBase, token, ep)
		mismatch := res.Err != nil || !res.StatusMatch || !res.BodyMatch
		if mismatch {
			if ep.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	report(results)
	fmt.Printf("breaking: %d, optional: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadManifest(path string) ([]endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints defined in %s", path)
	}
	return m.Endpoints, nil
}

func compare(client *http.Client, newBase, legacyBase, token string, ep endpoint) result {
	res := result{Endpoint: ep}

	newResp, newDur, err := fetch(client, newBase, token, ep)
	if err != nil {
		res.Err = fmt.Errorf("new service: %w", err)
		return res
	}
	defer newResp.Body.Close()
	legacyResp, legacyDur, err := fetch(client, legacyBase, token, ep)
	if err != nil {
		res.Err = fmt.Errorf("legacy service: %w", err)
		return res
	}
	defer legacyResp.Body.Close()

	res.NewDuration = newDur
	res.LegacyDuration = legacyDur
	res.NewStatus = newResp.StatusCode
	res.LegacyStatus = legacyResp.StatusCode
	res.StatusMatch = res.NewStatus == res.LegacyStatus

	newBody, err := io.ReadAll(newResp.Body)
	if err != nil {
		res.Err = fmt.Errorf("read new body: %w", err)
		return res
	}
	legacyBody, err := io.ReadAll(legacyResp.Body)
	if err != nil {
		res.Err = fmt.Errorf("read legacy body: %w", err)
		return res
	}
	res.BodyMatch = bodiesEqual(newBody, legacyBody)
	return res
}

func fetch(client *http.Client, base, token string, ep endpoint) (*http.Response, time.Duration, error) {
	method := strings.ToUpper(strings.TrimSpace(ep.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := ep.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}
	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	normalize(&aj)
	normalize(&bj)
	return reflect.DeepEqual(aj, bj)
}

// normalize strips volatile fields and collapses whole-number floats so the
// two JSON encoders compare equal.
func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			if volatileFields[k] {
				delete(val, k)
				continue
			}
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func report(results []result) {
	fmt.Println("Parity Report")
	fmt.Println("=============")
	for _, res := range results {
		status := "OK"
		switch {
		case res.Err != nil:
			status = "ERROR"
		case !res.StatusMatch || !res.BodyMatch:
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Endpoint.Method, res.Endpoint.Path)
		if res.Err != nil {
			fmt.Printf("  error: %v\n", res.Err)
			continue
		}
		fmt.Printf("  new: %d (%s) | legacy: %d (%s)\n", res.NewStatus, res.NewDuration, res.LegacyStatus, res.LegacyDuration)
		fmt.Printf("  status match: %t | body match: %t | critical: %t\n", res.StatusMatch, res.BodyMatch, res.Endpoint.Critical)
	}
}
