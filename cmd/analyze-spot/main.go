package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/analysis"
	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

func main() {
	var apiURL string
	var providerName string
	var timeout time.Duration

	flag.StringVar(&apiURL, "api", "", "FishCast API base URL (defaults to FISHCAST_API_URL)")
	flag.StringVar(&providerName, "provider", "smart", "Provider: smart, gemini or hf")
	flag.DurationVar(&timeout, "timeout", fishcast.DefaultTimeout, "Request timeout")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <image-path> [provider]\n\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	imagePath := flag.Arg(0)

	// Also accept provider as positional argument
	if flag.NArg() >= 2 {
		providerName = flag.Arg(1)
	}

	provider, err := fishcast.ParseProvider(providerName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}

	mimeType := getMimeType(imagePath)
	if err := analysis.Validate(mimeType, int64(len(data))); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if apiURL == "" {
		apiURL = os.Getenv("FISHCAST_API_URL")
	}
	client := fishcast.NewClient(fishcast.ClientOpts{BaseURL: apiURL, Timeout: timeout})

	fmt.Printf("Analyzing %s with %s...\n\n", filepath.Base(imagePath), provider.DisplayName())

	start := time.Now()
	result, err := client.Analyze(context.Background(), provider, data, mimeType, filepath.Base(imagePath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Provider: %s\n", result.Provider)
	fmt.Printf("Duration: %s\n\n", time.Since(start).Round(time.Millisecond))
	fmt.Println(result.Recommendation)
}

func getMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
