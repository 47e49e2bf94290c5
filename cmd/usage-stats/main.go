package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

func main() {
	var apiURL string
	var timeout time.Duration

	flag.StringVar(&apiURL, "api", "", "FishCast API base URL (defaults to FISHCAST_API_URL)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	if apiURL == "" {
		apiURL = os.Getenv("FISHCAST_API_URL")
	}
	client := fishcast.NewClient(fishcast.ClientOpts{BaseURL: apiURL, Timeout: timeout})

	stats, err := client.UsageStats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch usage stats from %s: %v\n", client.BaseURL(), err)
		os.Exit(1)
	}

	fmt.Printf("FishCast API usage (%s)\n\n", client.BaseURL())
	printWindow("Daily", stats.Daily)
	fmt.Println()
	printWindow("Per minute", stats.Minute)
}

func printWindow(name string, w fishcast.UsageWindow) {
	fmt.Printf("%s:\n", name)
	fmt.Printf("  Used:      %d / %d\n", w.Used, w.Limit)
	fmt.Printf("  Remaining: %d\n", w.Remaining)
	fmt.Printf("  Usage:     %.1f%%\n", w.Percentage)
}
