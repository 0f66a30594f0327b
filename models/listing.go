package models

import "time"

// Furnishing states reported by rental listing sites.
const (
	Furnished     = "Furnished"
	SemiFurnished = "Semi-Furnished"
	Unfurnished   = "Unfurnished"
)

// RawListing holds an unprocessed rental card straight from the browser.
// This is written to CSV before any cleaning or transformation.
type RawListing struct {
	City       string
	Locality   string
	Title      string
	RawPrice   string
	Furnishing string
	URL        string
	ScrapedAt  time.Time
}

// Listing is a cleaned rental listing with a parsed BHK count and monthly rent.
type Listing struct {
	City       string
	Locality   string
	BHK        int
	Price      int
	Furnishing string
	URL        string
}

// LocalityAverage is the mean single-bedroom rent of one furnishing state in a locality.
type LocalityAverage struct {
	Locality   string
	BHK        int
	AvgPrice   int
	Furnishing string
	Samples    int
}
