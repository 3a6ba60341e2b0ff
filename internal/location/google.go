package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/egannguyen/instaprint/internal/entity"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrNoResults is returned when the geocoder found nothing.
var ErrNoResults = errors.New("no geocoding results")

// GoogleGeocoder calls the Google Geocoding web service.
type GoogleGeocoder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGoogleGeocoder uses the public endpoint when baseURL is empty.
func NewGoogleGeocoder(baseURL, apiKey string, client *http.Client) *GoogleGeocoder {
	if baseURL == "" {
		baseURL = googleGeocodeURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleGeocoder{baseURL: baseURL, apiKey: apiKey, client: client}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location entity.Location `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (g *GoogleGeocoder) Reverse(ctx context.Context, loc entity.Location) (string, error) {
	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(loc.Lat, 'f', -1, 64)+","+strconv.FormatFloat(loc.Lng, 'f', -1, 64))
	resp, err := g.query(ctx, q)
	if err != nil {
		return "", err
	}
	return resp.Results[0].FormattedAddress, nil
}

func (g *GoogleGeocoder) Search(ctx context.Context, query string) (entity.Location, string, error) {
	q := url.Values{}
	q.Set("address", query)
	resp, err := g.query(ctx, q)
	if err != nil {
		return entity.Location{}, "", err
	}
	first := resp.Results[0]
	return first.Geometry.Location, first.FormattedAddress, nil
}

func (g *GoogleGeocoder) query(ctx context.Context, q url.Values) (*geocodeResponse, error) {
	q.Set("key", g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocode request: %w", err)
	}

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call geocoder: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned %d", httpResp.StatusCode)
	}

	var resp geocodeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNoResults
	default:
		return nil, fmt.Errorf("geocoder failed due to: %s %s", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 {
		return nil, ErrNoResults
	}
	return &resp, nil
}
