package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"healthchat/internal/logging"
	"healthchat/pkg"
)

const (
	// DefaultProductCacheTTL bounds how long search results are memoized.
	DefaultProductCacheTTL = time.Hour
	// DefaultSearchTimeout bounds a single web-search call.
	DefaultSearchTimeout = 10 * time.Second
	// DefaultSearchResults caps the links returned per product.
	DefaultSearchResults = 3

	defaultProductCategoryName = "general"
	productQuerySuffix         = " healthcare medical"
)

var productLeadIns = []*regexp.Regexp{
	regexp.MustCompile(`\brecommend(?:ed|s|ing)?\s+([^.!?\n]+)`),
	regexp.MustCompile(`\bsuggest(?:ed|s|ing)?\s+([^.!?\n]+)`),
	regexp.MustCompile(`\btry(?:ing)?\s+([^.!?\n]+)`),
	regexp.MustCompile(`\bconsider(?:ed|s|ing)?\s+([^.!?\n]+)`),
	regexp.MustCompile(`\buse\s+([^.!?\n]+)`),
	regexp.MustCompile(`\busing\s+([^.!?\n]+)`),
	regexp.MustCompile(`\bget(?:ting)?\s+([^.!?\n]+)`),
	regexp.MustCompile(`\bbuy(?:ing)?\s+([^.!?\n]+)`),
}

// Recommender finds products named in a reply and resolves them into links.
type Recommender struct {
	products   []string
	categories map[string]string
	searcher   Searcher
	cache      Cache
	cacheTTL   time.Duration
	timeout    time.Duration
	limit      int
	logger     *logging.Logger
}

// RecommenderConfig tunes link resolution.
type RecommenderConfig struct {
	CacheTTL      time.Duration
	SearchTimeout time.Duration
	MaxResults    int
}

// NewRecommender constructs a recommender.  searcher and cache may be nil;
// without a searcher every candidate gets the fallback links.
func NewRecommender(vocab Vocabulary, searcher Searcher, cache Cache, cfg RecommenderConfig, logger *logging.Logger) *Recommender {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultProductCacheTTL
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultSearchResults
	}
	cats := make(map[string]string, len(vocab.ProductCategory))
	for k, v := range vocab.ProductCategory {
		cats[strings.ToLower(k)] = v
	}
	return &Recommender{
		products:   lowerAll(vocab.Products),
		categories: cats,
		searcher:   searcher,
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
		timeout:    cfg.SearchTimeout,
		limit:      cfg.MaxResults,
		logger:     logging.OrNop(logger),
	}
}

// ExtractCandidates returns every vocabulary product found inside a phrase
// introduced by a recommendation verb.  Identical candidates are reported
// once.
func (r *Recommender) ExtractCandidates(reply string) []pkg.ProductCandidate {
	out := []pkg.ProductCandidate{}
	text := strings.ToLower(reply)
	if strings.TrimSpace(text) == "" {
		return out
	}
	seen := map[pkg.ProductCandidate]struct{}{}
	for _, re := range productLeadIns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			phrase := strings.TrimSpace(m[1])
			for _, name := range r.products {
				if name == "" || !strings.Contains(phrase, name) {
					continue
				}
				c := pkg.ProductCandidate{Name: name, Context: phrase, Category: r.category(name)}
				if _, dup := seen[c]; dup {
					continue
				}
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

func (r *Recommender) category(name string) string {
	if c, ok := r.categories[name]; ok {
		return c
	}
	return defaultProductCategoryName
}

// ResolveLinks looks up links for each candidate.  Search failures and
// empty results fall back to generic links; the error never escapes.
func (r *Recommender) ResolveLinks(ctx context.Context, candidates []pkg.ProductCandidate) []pkg.ProductLinks {
	out := make([]pkg.ProductLinks, 0, len(candidates))
	for _, c := range candidates {
		name := strings.TrimSpace(c.Name)
		query := name + productQuerySuffix
		pl := pkg.ProductLinks{Product: c, SearchQuery: query, Links: []pkg.Link{}}
		if name == "" {
			out = append(out, pl)
			continue
		}
		pl.Links = r.lookup(ctx, name, query)
		out = append(out, pl)
	}
	return out
}

func (r *Recommender) lookup(ctx context.Context, name, query string) []pkg.Link {
	key := productCacheKey(name)
	if r.cache != nil {
		raw, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warnw("product cache read failed", "key", key, "error", err)
		}
		if ok {
			var links []pkg.Link
			if err := json.Unmarshal(raw, &links); err == nil && len(links) > 0 {
				return links
			}
		}
	}

	links := r.search(ctx, query)
	if len(links) == 0 {
		return fallbackLinks(query)
	}
	if r.cache != nil {
		if raw, err := json.Marshal(links); err == nil {
			if err := r.cache.Set(ctx, key, raw, r.cacheTTL); err != nil {
				r.logger.Warnw("product cache write failed", "key", key, "error", err)
			}
		}
	}
	return links
}

func (r *Recommender) search(ctx context.Context, query string) []pkg.Link {
	if r.searcher == nil {
		return nil
	}
	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results, err := r.searcher.Search(searchCtx, query, r.limit)
	if err != nil {
		r.logger.Warnw("product search failed, using fallback links", "query", query, "error", err)
		return nil
	}
	links := make([]pkg.Link, 0, len(results))
	for _, res := range results {
		if res.URL == "" {
			continue
		}
		links = append(links, pkg.Link{Title: res.Title, URL: res.URL, Description: res.Description, Source: res.Source})
		if len(links) == r.limit {
			break
		}
	}
	return links
}

// fallbackLinks points at a marketplace, a web search and a medical
// reference for query.
func fallbackLinks(query string) []pkg.Link {
	q := url.QueryEscape(query)
	return []pkg.Link{
		{
			Title:       "Shop on Amazon",
			URL:         "https://www.amazon.com/s?k=" + q,
			Description: "Browse marketplace listings for " + query,
			Source:      "amazon.com",
		},
		{
			Title:       "Search the web",
			URL:         "https://www.google.com/search?q=" + q,
			Description: "General web results for " + query,
			Source:      "google.com",
		},
		{
			Title:       "MedlinePlus health information",
			URL:         "https://medlineplus.gov/search/?query=" + q,
			Description: "Trusted medical reference for " + query,
			Source:      "medlineplus.gov",
		},
	}
}

func productCacheKey(name string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(name)))
	return "products:search:" + hex.EncodeToString(sum[:])
}
