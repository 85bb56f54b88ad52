package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/fortuna/headshot/internal/cache"
	"github.com/fortuna/headshot/internal/dom/htmldoc"
	"github.com/fortuna/headshot/internal/ingest/reference"
	"github.com/fortuna/headshot/internal/patch"
	"github.com/fortuna/headshot/internal/reconciliation"
	"github.com/fortuna/headshot/internal/season"
)

const (
	appName    = "headshot-snapshot"
	appVersion = "1.0.0"
)

// assumeExists answers every probe with "exists" for offline runs.
type assumeExists struct{}

func (assumeExists) Probe(ctx context.Context, url string) (bool, error) { return true, nil }

func main() {
	log.Printf("=== %s v%s ===", appName, appVersion)

	var (
		input        = flag.String("in", "", "Saved team page (HTML file)")
		output       = flag.String("out", "", "Write the patched page here (default stdout)")
		referenceURL = flag.String("reference-url", getEnv("REFERENCE_URL", ""), "Player dataset URL")
		referenceCSV = flag.String("reference-file", "", "Local player dataset (CSV or JSON), overrides --reference-url")
		photoBase    = flag.String("photo-base", getEnv("PHOTO_BASE_URL", ""), "Photo CDN base URL")
		redisURL     = flag.String("redis", "", "Share the availability cache through this Redis URL")
		exactNames   = flag.Bool("exact-names", false, "Require exact name matches")
		offline      = flag.Bool("offline", false, "Assume every photo exists instead of probing the CDN")
	)
	flag.Parse()

	if *input == "" {
		log.Fatalf("Specify --in")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	records, err := loadRecords(ctx, *referenceCSV, *referenceURL)
	if err != nil {
		log.Fatalf("load reference data: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("no reference data; nothing to patch")
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("open page: %v", err)
	}
	doc, err := htmldoc.Parse(f)
	f.Close()
	if err != nil {
		log.Fatalf("parse page: %v", err)
	}

	var store cache.Store = cache.NewMemoryStore(nil)
	if *redisURL != "" {
		rc, err := cache.NewRedisCache(*redisURL)
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer rc.Close()
		store = cache.NewRedisStore(rc)
		log.Println("✓ Connected to Redis")
	}

	var prober cache.Prober = cache.NewHTTPProber(5 * time.Second)
	if *offline {
		prober = assumeExists{}
	}

	availability, err := cache.NewAvailability(ctx, store, prober, 0, nil)
	if err != nil {
		log.Fatalf("availability cache: %v", err)
	}

	engine := patch.NewEngine(
		reconciliation.NewMatcher(reconciliation.WithExactNames(*exactNames)),
		availability,
		patch.WithPhotoBaseURL(*photoBase),
	)
	res := engine.ApplyAll(ctx, doc, records)
	printSummary(res)

	var w io.Writer = os.Stdout
	if *output != "" {
		out, err := os.Create(*output)
		if err != nil {
			log.Fatalf("create output: %v", err)
		}
		defer out.Close()
		w = out
	}
	if err := doc.Render(w); err != nil {
		log.Fatalf("render page: %v", err)
	}
}

func loadRecords(ctx context.Context, file, url string) ([]reference.PlayerRecord, error) {
	if file == "" {
		return reference.New(url, nil).Load(ctx), nil
	}
	body, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	res, err := reference.Parse(body, season.Key(time.Now()))
	if err != nil {
		return nil, err
	}
	log.Printf("✓ Loaded %d players from %s (%s, %d rows dropped)", len(res.Records), file, res.Format, res.Dropped)
	return res.Records, nil
}

func printSummary(res patch.PassResult) {
	log.Printf("Pass %s: %d slots, %d writes in %v", res.PassID, res.Slots, res.Writes, res.Duration)
	outcomes := make([]string, 0, len(res.Outcomes))
	for o := range res.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(os.Stderr, "  %-14s %d\n", o, res.Outcomes[patch.Outcome(o)])
	}
	if res.Err != "" {
		log.Printf("⚠️  Pass error: %s", res.Err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
