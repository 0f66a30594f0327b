package magicbricks

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"rental-pricing/config"
	"rental-pricing/models"
	"rental-pricing/utils"
)

// cardScript collects rental cards from a search results page. Cards
// without a BHK count in the title or priced in lakhs are skipped in the
// page, the same way the cleaner would drop them later.
const cardScript = `
(function() {
	var results = [];
	var cards = document.querySelectorAll('div.mb-srp__card');
	for (var i = 0; i < cards.length; i++) {
		var card = cards[i];
		var titleEl = card.querySelector('h2.mb-srp__card--title');
		var priceEl = card.querySelector('div.mb-srp__card__price--amount');
		var furnEl = card.querySelector('div[data-summary="furnishing"] .mb-srp__card__summary--value');
		var linkEl = card.querySelector('a[href*="magicbricks.com"]') || card.querySelector('a[href]');

		var title = titleEl ? (titleEl.getAttribute('title') || titleEl.innerText || '').trim() : '';
		var price = priceEl ? priceEl.innerText.trim() : '';
		if (!/(\d+)\s*bhk/i.test(title) || /lac/i.test(price)) continue;

		results.push({
			title:      title,
			price:      price,
			furnishing: furnEl ? furnEl.innerText.trim() : '',
			url:        linkEl ? linkEl.href : ''
		});
	}
	return results;
})()
`

type cardData struct {
	Title      string `json:"title"`
	Price      string `json:"price"`
	Furnishing string `json:"furnishing"`
	URL        string `json:"url"`
}

// Scraper collects rental listing cards for every configured locality.
type Scraper struct {
	cfg        *config.Config
	targets    config.Targets
	logger     *utils.Logger
	pool       *utils.WorkerPool
	visitedURL *utils.KeySet
	retry      *utils.RetryConfig

	mu       sync.Mutex
	listings []*models.RawListing
}

// New creates a ready-to-use Scraper for targets.
func New(cfg *config.Config, targets config.Targets, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:        cfg,
		targets:    targets,
		logger:     logger,
		pool:       utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		visitedURL: utils.NewKeySet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		listings: make([]*models.RawListing, 0),
	}
}

// Scrape visits every locality of every city on the worker pool and
// returns the raw cards found. A locality that keeps failing is logged and
// skipped.
func (s *Scraper) Scrape(ctx context.Context) ([]*models.RawListing, error) {
	total := 0
	for _, t := range s.targets {
		total += len(t.Localities)
	}
	s.logger.Info("[magicbricks] Starting scrape: %d cities, %d localities, up to %d listings each",
		len(s.targets), total, s.cfg.ListingsPerLocality)

	chromeBin := findChromeBinary(s.cfg.ChromeBin)
	s.logger.Info("[magicbricks] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("magicbricks: start browser: %w", err)
	}

	for _, city := range s.targets.Cities() {
		target := s.targets[city]
		for _, locality := range target.Localities {
			url := searchURL(target.SearchURL, locality)
			s.pool.Submit(func() {
				found, err := s.scrapeLocality(browserCtx, city, locality, url)
				if err != nil {
					s.logger.Error("[magicbricks] %s/%s failed: %v", city, locality, err)
					return
				}
				s.mu.Lock()
				s.listings = append(s.listings, found...)
				s.mu.Unlock()
				s.logger.Info("[magicbricks] %s/%s: %d listings", city, locality, len(found))
			})
		}
	}
	s.pool.Wait()

	if err := ctx.Err(); err != nil {
		return s.listings, fmt.Errorf("magicbricks: scrape interrupted: %w", err)
	}
	s.logger.Info("[magicbricks] Scrape complete, total raw listings: %d", len(s.listings))
	return s.listings, nil
}

// scrapeLocality loads one search page, scrolls to trigger lazy loading and
// extracts cards.
func (s *Scraper) scrapeLocality(browserCtx context.Context, city, locality, pageURL string) ([]*models.RawListing, error) {
	var found []*models.RawListing

	err := s.retry.Do(browserCtx, "scrape "+city+"/"+locality, func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 90*time.Second)
		defer cancelTimeout()

		var cards []cardData
		err := chromedp.Run(ctx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(5*time.Second),

			// Scroll to load more cards
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),

			chromedp.Evaluate(cardScript, &cards),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}

		s.logger.Debug("[magicbricks] %s/%s: found %d cards", city, locality, len(cards))
		found = s.collect(cards, city, locality, time.Now())
		return nil
	})

	return found, err
}

// collect keeps up to ListingsPerLocality cards with an unseen URL.
func (s *Scraper) collect(cards []cardData, city, locality string, scrapedAt time.Time) []*models.RawListing {
	var out []*models.RawListing
	for _, c := range cards {
		if len(out) >= s.cfg.ListingsPerLocality {
			break
		}
		if c.URL == "" {
			continue
		}
		if !s.visitedURL.Add(c.URL) {
			s.logger.Debug("[magicbricks] Skipping duplicate: %s", c.URL)
			continue
		}
		out = append(out, &models.RawListing{
			City:       city,
			Locality:   locality,
			Title:      c.Title,
			RawPrice:   c.Price,
			Furnishing: c.Furnishing,
			URL:        c.URL,
			ScrapedAt:  scrapedAt,
		})
	}
	return out
}

// searchURL fills the locality slug into template. A template without a
// placeholder is used as is.
func searchURL(template, locality string) string {
	if !strings.Contains(template, "%s") {
		return template
	}
	return strings.Replace(template, "%s", localitySlug(locality), 1)
}

// localitySlug turns "Sector 31" into "sector-31".
func localitySlug(locality string) string {
	return strings.Join(strings.Fields(strings.ToLower(locality)), "-")
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
