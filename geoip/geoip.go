// Package geoip resolves client IP addresses to approximate locations via an
// external lookup provider (ipapi.co-compatible JSON API).
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/nottinghamcompanions/website-api/models"
)

// LookupTimeout bounds a single geolocation lookup. A slow provider must
// never stall a tracking request beyond this.
const LookupTimeout = 5 * time.Second

const defaultBaseURL = "https://ipapi.co"

// UnknownIP is the sentinel used when no client IP could be resolved from
// the request.
const UnknownIP = "unknown"

// Enricher resolves an IP address to a location. Implementations never
// return an error: lookups fail soft to an "Unknown" location.
type Enricher interface {
	Lookup(ctx context.Context, ipAddress string) models.GeoLocation
}

// Client is the ipapi.co-backed Enricher used in production.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a geolocation client. GEOIP_BASE_URL overrides the
// provider endpoint (used to point tests and staging at a stub).
func NewClient() *Client {
	baseURL := os.Getenv("GEOIP_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: LookupTimeout},
		baseURL:    baseURL,
	}
}

// providerResponse is the subset of the ipapi.co JSON body we consume.
type providerResponse struct {
	CountryName string   `json:"country_name"`
	Region      string   `json:"region"`
	City        string   `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func localLocation() models.GeoLocation {
	return models.GeoLocation{Country: "Local", Region: "Local", City: "Local"}
}

func unknownLocation() models.GeoLocation {
	return models.GeoLocation{Country: "Unknown", Region: "Unknown", City: "Unknown"}
}

// Lookup resolves ipAddress to a location. Loopback, unspecified and unknown
// addresses short-circuit to a "Local" record without touching the network.
// Provider errors of any kind (timeout, non-2xx, malformed body, missing
// country) are logged and degrade to an "Unknown" record.
func (c *Client) Lookup(ctx context.Context, ipAddress string) models.GeoLocation {
	if isLocalAddress(ipAddress) {
		return localLocation()
	}

	url := fmt.Sprintf("%s/%s/json/", c.baseURL, ipAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Printf("Geolocation lookup failed for %s: %v", ipAddress, err)
		return unknownLocation()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Geolocation lookup failed for %s: %v", ipAddress, err)
		return unknownLocation()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Geolocation lookup failed for %s: provider returned status %d", ipAddress, resp.StatusCode)
		return unknownLocation()
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Printf("Geolocation lookup failed for %s: %v", ipAddress, err)
		return unknownLocation()
	}

	if body.CountryName == "" {
		log.Printf("Geolocation lookup failed for %s: response missing country", ipAddress)
		return unknownLocation()
	}

	return models.GeoLocation{
		Country:   body.CountryName,
		Region:    body.Region,
		City:      body.City,
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
	}
}

func isLocalAddress(ipAddress string) bool {
	if ipAddress == "" || ipAddress == UnknownIP {
		return true
	}
	if ip := net.ParseIP(ipAddress); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}
