package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

type jobStatus struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Errors []string `json:"errors"`
}

func main() {
	base := flag.String("url", "http://localhost:8080", "server base URL")
	totalRequests := flag.Int("n", 20, "jobs to enqueue")
	ratePerSecond := flag.Int("rate", 5, "enqueue requests per second")
	pollEvery := flag.Duration("poll", 5*time.Second, "status poll interval")
	deadline := flag.Duration("timeout", 30*time.Minute, "give up polling after")
	flag.Parse()

	payload := map[string]interface{}{
		"appVersion":      "1.0.0.0",
		"appVersionCode":  1,
		"backgroundColor": "#3f51b5",
		"display":         "standalone",
		"fallbackType":    "customtabs",
		"host":            "https://webboard.app",
		"iconUrl":         "https://webboard.app/icon_512.png",
		"launcherName":    "Webboard",
		"name":            "Webboard",
		"navigationColor": "#3f51b5",
		"packageId":       "app.webboard",
		"pwaUrl":          "https://webboard.app",
		"signingMode":     "none",
		"startUrl":        "/",
		"themeColor":      "#3f51b5",
		"webManifestUrl":  "https://webboard.app/manifest.json",
	}
	jsonData, _ := json.Marshal(payload)

	ticker := time.NewTicker(time.Second / time.Duration(*ratePerSecond))
	defer ticker.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := map[string]int{}
	client := &http.Client{Timeout: 30 * time.Second}
	start := time.Now()

	for i := 1; i <= *totalRequests; i++ {
		<-ticker.C

		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			resp, err := client.Post(*base+"/enqueuePackageJob?ref=loadtest", "application/json", bytes.NewReader(jsonData))
			if err != nil {
				fmt.Printf("Request %d: error sending request: %v\n", n, err)
				return
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				fmt.Printf("Request %d -> Status: %d, content: %s\n", n, resp.StatusCode, string(body))
				return
			}
			id := string(body)

			status := poll(client, *base, id, *pollEvery, *deadline)
			elapsed := time.Since(start).Round(time.Second)
			fmt.Printf("Request %d -> job %s finished as %s after %s\n", n, id, status, elapsed)

			mu.Lock()
			results[status]++
			mu.Unlock()
		}(i)
	}

	wg.Wait()
	fmt.Printf("All jobs settled in %s: %v\n", time.Since(start).Round(time.Second), results)
}

func poll(client *http.Client, base, id string, every, deadline time.Duration) string {
	stopAt := time.Now().Add(deadline)
	for time.Now().Before(stopAt) {
		time.Sleep(every)
		resp, err := client.Get(base + "/getPackageJob?id=" + url.QueryEscape(id))
		if err != nil {
			continue
		}
		var job jobStatus
		err = json.NewDecoder(resp.Body).Decode(&job)
		resp.Body.Close()
		if err != nil {
			continue
		}
		if job.Status == "Completed" || job.Status == "Failed" {
			return job.Status
		}
	}
	return "TimedOut"
}
