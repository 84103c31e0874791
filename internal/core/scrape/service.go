// Package scrape runs the marketplace searches behind the session contract:
// the worker executes queued sessions and streams per-shop results back over
// Redis pub/sub.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/hibiken/asynq"

	"tokoscout/internal/core/result"
	"tokoscout/internal/core/session"
	"tokoscout/internal/logger"
	rds "tokoscout/internal/platform/redis"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Service is the worker side: it consumes search tasks, scrapes each query
// and publishes progress/done events on the session's channel.
type Service struct {
	redis     *rds.Service
	selectors Selectors
	log       *logger.Logger
	userAgent string
}

func NewService(redis *rds.Service, selectors Selectors) *Service {
	return &Service{
		redis:     redis,
		selectors: selectors,
		log:       logger.New("ScrapeService"),
		userAgent: defaultUserAgent,
	}
}

// HandleSearchTask runs one session. Scrape failures terminate the session
// with an error event rather than an asynq retry: a retry would replay a
// session the console has already marked failed.
func (s *Service) HandleSearchTask(ctx context.Context, t *asynq.Task) error {
	var p taskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode search payload: %w", err)
	}
	s.log.LogInfof("session %s: %d queries on %s", p.SessionID, len(p.Queries), p.Platform)

	agg := newAggregator(p.Platform)
	for _, q := range p.Queries {
		items, err := s.searchQuery(ctx, p.Platform, q)
		if err != nil {
			s.log.LogErrorf("session %s query %q: %v", p.SessionID, q, err)
			s.publish(ctx, p.SessionID, session.Event{
				SessionID: p.SessionID,
				Kind:      session.EventError,
				Err:       fmt.Sprintf("query %q: %v", q, err),
			})
			return nil
		}
		for _, shop := range agg.addQuery(q, items) {
			sh := shop
			s.publish(ctx, p.SessionID, session.Event{
				SessionID: p.SessionID,
				Kind:      session.EventProgress,
				Shop:      &sh,
			})
		}
	}

	s.publish(ctx, p.SessionID, session.Event{SessionID: p.SessionID, Kind: session.EventDone})
	return nil
}

func (s *Service) publish(ctx context.Context, sessionID string, ev session.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		s.log.LogErrorf("marshal session event: %v", err)
		return
	}
	if err := s.redis.Publish(ctx, sessionChannel(sessionID), b); err != nil {
		s.log.LogErrorf("publish session event: %v", err)
	}
}

// searchQuery scrapes one marketplace search page for one query.
func (s *Service) searchQuery(ctx context.Context, platform result.Platform, q string) ([]item, error) {
	sel, ok := s.selectors[platform]
	if !ok {
		return nil, fmt.Errorf("no selectors for platform %q", platform)
	}
	searchURL := fmt.Sprintf(sel.SearchURL, url.QueryEscape(q))

	c := colly.NewCollector(colly.UserAgent(s.userAgent))
	c.SetRequestTimeout(30 * time.Second)

	var items []item
	var visitErr error
	c.OnHTML(sel.Product, func(e *colly.HTMLElement) {
		it, ok := extractItem(e, sel)
		if ok {
			items = append(items, it)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: %w", searchURL, err)
	})

	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", searchURL, err)
	}
	if visitErr != nil {
		return nil, visitErr
	}
	s.log.LogDebugf("query %q: %d listings on %s", q, len(items), platform)
	return items, nil
}

// extractItem reads one product card. The card element is expected to be (or
// contain) the product link; cards without one are skipped.
func extractItem(e *colly.HTMLElement, sel PlatformSelectors) (item, bool) {
	link := e.Attr("href")
	if sel.Link != "" {
		if v, okAttr := e.DOM.Find(sel.Link).First().Attr("href"); okAttr {
			link = v
		}
	}
	if link == "" || strings.Contains(link, "/product?perpage=") {
		return item{}, false
	}
	link = e.Request.AbsoluteURL(link)

	image := firstAttr(e.DOM, sel.Image, "src")
	if image == "" {
		// Lazy-loaded cards keep the real source in data-src.
		image = firstAttr(e.DOM, sel.Image, "data-src")
	}

	return item{
		product: result.Product{
			Name:  strings.TrimSpace(e.DOM.Find(sel.Name).First().Text()),
			Price: strings.TrimSpace(e.DOM.Find(sel.Price).First().Text()),
			Link:  link,
			Image: image,
		},
		shop: strings.TrimSpace(e.DOM.Find(sel.Shop).First().Text()),
	}, true
}

func firstAttr(dom *goquery.Selection, selector, attr string) string {
	v, _ := dom.Find(selector).First().Attr(attr)
	return v
}
