package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"rental-pricing/models"
	"rental-pricing/utils"
)

var (
	// bhkRegexp captures the bedroom count in titles like "2 BHK Flat for Rent"
	bhkRegexp = regexp.MustCompile(`(\d+)\s*bhk`)
	// priceRegexp captures the first grouped rupee amount, e.g. "₹ 25,000"
	priceRegexp = regexp.MustCompile(`\d[\d,]*`)
)

// Cleaner transforms RawListings into clean, validated Listings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean processes raw listings and returns cleaned records. Cards without a
// URL, a BHK count, a monthly rupee price or a known furnishing state are dropped.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	seen := utils.NewKeySet()
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			c.logger.Warn("[cleaner] Dropping listing with empty URL: %s", r.Title)
			continue
		}

		if !seen.Add(url) {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", url)
			continue
		}

		bhk, ok := parseBHK(r.Title)
		if !ok {
			c.logger.Debug("[cleaner] No BHK in title, skipped: %s", r.Title)
			continue
		}

		price, ok := c.parsePrice(r.RawPrice)
		if !ok {
			continue
		}

		furnishing, ok := normaliseFurnishing(r.Furnishing)
		if !ok {
			c.logger.Debug("[cleaner] Unknown furnishing %q, skipped: %s", r.Furnishing, url)
			continue
		}

		result = append(result, &models.Listing{
			City:       normaliseText(r.City),
			Locality:   normaliseText(r.Locality),
			BHK:        bhk,
			Price:      price,
			Furnishing: furnishing,
			URL:        url,
		})
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

func parseBHK(title string) (int, bool) {
	m := bhkRegexp.FindStringSubmatch(strings.ToLower(title))
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// parsePrice extracts a monthly rent in rupees.
// Examples:
//
//	"₹25,000" → 25000
//	"₹ 1,20,000" → 120000
//	"₹1.2 Lac" → dropped (sale-range prices are quoted in lakhs)
func (c *Cleaner) parsePrice(raw string) (int, bool) {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "lac") || strings.Contains(lower, "lakh") {
		c.logger.Debug("[cleaner] Price in lakhs skipped: %s", raw)
		return 0, false
	}

	match := priceRegexp.FindString(lower)
	if match == "" {
		return 0, false
	}
	price, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

func normaliseFurnishing(s string) (string, bool) {
	key := strings.ToLower(normaliseText(s))
	key = strings.NewReplacer("-", "", " ", "").Replace(key)
	switch key {
	case "furnished", "fullyfurnished":
		return models.Furnished, true
	case "semifurnished":
		return models.SemiFurnished, true
	case "unfurnished":
		return models.Unfurnished, true
	}
	return "", false
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// localityKey is the join key used to match localities across sources.
func localityKey(s string) string {
	return strings.ToLower(normaliseText(s))
}
