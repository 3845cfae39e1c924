package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/searchrelay/internal/core/domain"
	"github.com/vietddude/searchrelay/internal/infra/search"
	"github.com/vietddude/searchrelay/internal/infra/search/routing"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	var providers []domain.ProviderConfig
	for i, p := range []struct{ name, env string }{
		{"serper", "SERPER_API_KEY"},
		{"serpapi", "SERPAPI_API_KEY"},
		{"scrapingbee", "SCRAPINGBEE_API_KEY"},
	} {
		key := os.Getenv(p.env)
		if key == "" {
			continue
		}
		providers = append(providers, domain.ProviderConfig{
			Name:     p.name,
			APIKey:   key,
			Priority: i + 1,
			Enabled:  true,
			Timeout:  10 * time.Second,
		})
	}
	if len(providers) == 0 {
		log.Fatalf("Set at least one of SERPER_API_KEY, SERPAPI_API_KEY, SCRAPINGBEE_API_KEY")
	}

	// 1. Create the fallback system
	system, err := search.NewSystem(search.Config{
		Providers: providers,
		Breaker:   routing.DefaultBreakerConfig(),
	}, search.Deps{})
	if err != nil {
		log.Fatalf("Failed to create search system: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	query := "golang circuit breaker"
	if len(os.Args) > 1 {
		query = os.Args[1]
	}

	fmt.Println("=== Searching ===")

	// 2. Run one search, falling back across providers
	resp, err := system.Search(ctx, domain.SearchOptions{Query: query, ResultsCount: 5})
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	fmt.Printf("Served by %s in %s\n\n", resp.Provider, resp.SearchTime.Round(time.Millisecond))
	for _, r := range resp.Results {
		fmt.Printf("%d. %s\n   %s\n", r.Position, r.Title, r.URL)
	}

	// 3. Show provider health after the call
	fmt.Println("\n=== Provider Health ===")
	for _, snap := range system.Snapshot().Providers {
		fmt.Printf("%-12s %-10s success=%.0f%% errors=%d breaker=%s\n",
			snap.Config.Name, snap.Health.Status, snap.Health.SuccessRate, snap.Health.ErrorCount, snap.Breaker.State)
	}
}
