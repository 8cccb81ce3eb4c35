// Package enrich looks up a short "about" text for universities from their web site.
package enrich

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mww/global_leaderboard/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

const (
	ChromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

	defaultWorkers = 16
	maxPageSize    = 4 << 20
)

// Meta keys holding a description, by preference.
var descriptionKeys = []string{"description", "og:description", "twitter:description"}

type Client interface {
	// Describe returns a description, or nil, for every key of universities. It never fails.
	Describe(ctx context.Context, universities map[string]model.University) map[string]*string
}

type Rephraser interface {
	// Rephrase returns nil when nothing sensible can be written from description.
	Rephrase(ctx context.Context, u *model.University, description string) (*string, error)
}

type client struct {
	httpClient *http.Client
	rephraser  Rephraser
	workers    int
}

// New returns a Client fetching pages itself. rephraser may be nil, the page
// description is then used as is.
func New(rephraser Rephraser) Client {
	return &client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				// many university sites serve broken certificate chains
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		rephraser: rephraser,
		workers:   defaultWorkers,
	}
}

func (c *client) Describe(ctx context.Context, universities map[string]model.University) map[string]*string {
	var mu sync.Mutex
	result := make(map[string]*string, len(universities))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for key, u := range universities {
		g.Go(func() error {
			d := c.describe(ctx, &u)

			mu.Lock()
			result[key] = d
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return result
}

func (c *client) describe(ctx context.Context, u *model.University) *string {
	if u.URL == "" {
		return nil
	}

	description, err := c.fetchDescription(ctx, u.URL)
	if err != nil {
		log.Printf("%s: %v", u.URL, err)
		return nil
	}
	if description == "" {
		return nil
	}

	if c.rephraser == nil {
		return &description
	}

	rephrased, err := c.rephraser.Rephrase(ctx, u, description)
	if err != nil {
		log.Printf("%s: error rephrasing description: %v", u.URL, err)
		return nil
	}
	return rephrased
}

func (c *client) fetchDescription(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating http request: %w", err)
	}
	req.Header.Set("User-Agent", ChromeUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return extractDescription(io.LimitReader(resp.Body, maxPageSize))
}

// extractDescription collects <meta> tags keyed by their property, or name when
// there is none, and returns the first non-empty description.
func extractDescription(r io.Reader) (string, error) {
	properties := make(map[string]string)

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return "", fmt.Errorf("error parsing html: %w", z.Err())
			}
			for _, k := range descriptionKeys {
				if v := strings.TrimSpace(properties[k]); v != "" {
					return v, nil
				}
			}
			return "", nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.Meta {
				continue
			}

			var property, name, content string
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "property":
					property = a.Val
				case "name":
					name = a.Val
				case "content":
					content = a.Val
				}
			}

			key := property
			if key == "" {
				key = name
			}
			if key != "" {
				properties[key] = content
			}
		}
	}
}

// NewNop returns a Client that never describes anything.
func NewNop() Client {
	return nopClient{}
}

type nopClient struct{}

func (nopClient) Describe(ctx context.Context, universities map[string]model.University) map[string]*string {
	result := make(map[string]*string, len(universities))
	for key := range universities {
		result[key] = nil
	}
	return result
}
