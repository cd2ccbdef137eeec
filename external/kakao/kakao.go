package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultURL     = "https://dapi.kakao.com"
	defaultTimeout = 5 * time.Second
	logPrefix      = "kakao"
)

var (
	errEmptyKey = fmt.Errorf("empty api key")
)

//go:generate mockgen -destination=../mocks/kakao.go -package=mocks github.com/stl-inc/as-report-api/external/kakao Local

// Local - kakao local api
type Local interface {
	// Coord2Address returns the documents for a coordinate, road address first when known
	Coord2Address(ctx context.Context, lat, lng float64) ([]AddressDocument, error)
	KeywordSearch(ctx context.Context, query string) ([]PlaceDocument, error)
}

type AddressName struct {
	AddressName string `json:"address_name"`
}

type AddressDocument struct {
	RoadAddress *AddressName `json:"road_address"`
	Address     *AddressName `json:"address"`
}

type PlaceDocument struct {
	PlaceName   string `json:"place_name"`
	AddressName string `json:"address_name"`
	X           string `json:"x"`
	Y           string `json:"y"`
}

// Position parses the longitude/latitude strings of a place
func (p PlaceDocument) Position() (lat, lng float64, err error) {
	if lat, err = strconv.ParseFloat(p.Y, 64); err != nil {
		return 0, 0, err
	}
	if lng, err = strconv.ParseFloat(p.X, 64); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

type local struct {
	key    string
	url    string
	client *http.Client
}

func (l local) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if l.key == "" {
		return errEmptyKey
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "KakaoAK "+l.key)

	resp, err := l.client.Do(req)
	if nil != err {
		return err
	}
	defer resp.Body.Close()

	d, err := ioutil.ReadAll(resp.Body)
	if nil != err {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		log.WithField("prefix", logPrefix).WithField("path", path).Errorf("status %d: %s", resp.StatusCode, d)
		return fmt.Errorf("kakao local: status %d", resp.StatusCode)
	}

	return json.Unmarshal(d, out)
}

func (l local) Coord2Address(ctx context.Context, lat, lng float64) ([]AddressDocument, error) {
	var r struct {
		Documents []AddressDocument `json:"documents"`
	}
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	if err := l.get(ctx, "/v2/local/geo/coord2address.json", q, &r); err != nil {
		return nil, err
	}
	return r.Documents, nil
}

func (l local) KeywordSearch(ctx context.Context, query string) ([]PlaceDocument, error) {
	var r struct {
		Documents []PlaceDocument `json:"documents"`
	}
	q := url.Values{}
	q.Set("query", query)
	if err := l.get(ctx, "/v2/local/search/keyword.json", q, &r); err != nil {
		return nil, err
	}
	return r.Documents, nil
}

func New(key string, url string) Local {
	u := defaultURL
	if url != "" {
		u = url
	}

	return &local{
		key:    key,
		url:    u,
		client: &http.Client{Timeout: defaultTimeout},
	}
}
