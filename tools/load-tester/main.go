package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Hammers the credential-issuance endpoint to observe the shared
// fixed-window limiter under concurrent load. 429s are expected and
// counted separately from real errors.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the broker service")
	userID := flag.String("user-id", "", "Operator user id owning the organization")
	orgName := flag.String("org", "", "Organization name")
	apiKey := flag.String("api-key", "", "Organization API key")
	accountID := flag.String("account-id", "123456789012", "Target account id")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 100, "Requests per second limit")
	flag.Parse()

	if *userID == "" || *orgName == "" || *apiKey == "" {
		log.Fatal("user-id, org, and api-key are required")
	}

	targetURL := fmt.Sprintf("%s/api/credentials?user_id=%s", *baseURL, *userID)
	payload, err := json.Marshal(map[string]string{
		"org_name":          *orgName,
		"role_type":         "readonly",
		"target_account_id": *accountID,
		"api_key":           *apiKey,
	})
	if err != nil {
		log.Fatalf("failed to build payload: %v", err)
	}

	log.Printf("Starting load test on %s", targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var issuedCount, limitedCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{
				Timeout: 10 * time.Second,
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
					if err := limiter.Wait(ctx); err != nil {
						return
					}

					req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
					if err != nil {
						continue
					}
					req.Header.Set("Content-Type", "application/json")

					resp, err := client.Do(req)
					if err != nil {
						errorCount.Add(1)
						continue
					}

					switch resp.StatusCode {
					case http.StatusOK:
						issuedCount.Add(1)
					case http.StatusTooManyRequests:
						limitedCount.Add(1)
					default:
						errorCount.Add(1)
					}
					resp.Body.Close()
				}
			}
		}()
	}

	wg.Wait()

	totalRequests := issuedCount.Load() + limitedCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Issued (200 OK): %d", issuedCount.Load())
	log.Printf("Rate Limited (429): %d", limitedCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}
