package scoring

import (
	"math"
	"strings"
	"unicode"

	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

type Category string

const (
	CategoryMarket    Category = "market"
	CategoryTechnical Category = "technical"
	CategoryPersonal  Category = "personal"
)

// Categories lists the factor categories in catalog order.
func Categories() []Category {
	return []Category{CategoryMarket, CategoryTechnical, CategoryPersonal}
}

// Factor is one entry of the static scoring catalog.
type Factor struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      Category `json:"category"`
	DefaultWeight int      `json:"default_weight"`

	// skew multiplies the article base score; keywords earn keywordBoost when
	// any of them appears in the article text or tags.
	skew     float64
	keywords []string
}

const keywordBoost = 10.0

var registry = []Factor{
	{
		ID: "market_volatility", Name: "Market Volatility", Category: CategoryMarket, DefaultWeight: 75,
		Description: "Price swings and sudden moves in the broader crypto market",
		skew:        1.05, keywords: []string{"volatility", "volatile", "crash", "surge", "plunge", "rally", "liquidation"},
	},
	{
		ID: "trading_volume", Name: "Trading Volume", Category: CategoryMarket, DefaultWeight: 65,
		Description: "Changes in trading activity, liquidity and fund flows",
		skew:        0.90, keywords: []string{"volume", "liquidity", "inflows", "outflows", "trading"},
	},
	{
		ID: "regulatory_news", Name: "Regulatory News", Category: CategoryMarket, DefaultWeight: 80,
		Description: "Regulation, enforcement actions and policy changes",
		skew:        1.10, keywords: []string{"sec", "cftc", "regulation", "regulatory", "regulator", "lawsuit", "ban", "compliance"},
	},
	{
		ID: "technology_updates", Name: "Technology Updates", Category: CategoryTechnical, DefaultWeight: 70,
		Description: "Protocol upgrades, forks and new releases",
		skew:        0.95, keywords: []string{"upgrade", "fork", "protocol", "mainnet", "testnet", "release", "layer 2"},
	},
	{
		ID: "security_incidents", Name: "Security Incidents", Category: CategoryTechnical, DefaultWeight: 85,
		Description: "Hacks, exploits, breaches and scams",
		skew:        1.15, keywords: []string{"hack", "hacked", "exploit", "breach", "vulnerability", "scam", "phishing"},
	},
	{
		ID: "adoption_metrics", Name: "Adoption Metrics", Category: CategoryTechnical, DefaultWeight: 60,
		Description: "User growth, integrations and institutional adoption",
		skew:        0.85, keywords: []string{"adoption", "users", "partnership", "integration", "etf"},
	},
	{
		ID: "portfolio_relevance", Name: "Portfolio Relevance", Category: CategoryPersonal, DefaultWeight: 90,
		Description: "Relevance to commonly held assets",
		skew:        1.00, keywords: []string{"bitcoin", "btc", "ethereum", "eth", "portfolio"},
	},
	{
		ID: "industry_impact", Name: "Industry Impact", Category: CategoryPersonal, DefaultWeight: 75,
		Description: "Effects on exchanges, institutions and the wider industry",
		skew:        0.90, keywords: []string{"industry", "exchange", "institutional", "bank", "banks"},
	},
	{
		ID: "geographic_relevance", Name: "Geographic Relevance", Category: CategoryPersonal, DefaultWeight: 60,
		Description: "Regional and country-specific developments",
		skew:        0.70, keywords: []string{"us", "usa", "europe", "eu", "asia", "china", "uk", "global"},
	},
}

// ListFactors returns the full catalog in a stable order.
func ListFactors() []Factor {
	out := make([]Factor, len(registry))
	copy(out, registry)
	return out
}

// ListByCategory returns the factors of one category in catalog order.
func ListByCategory(cat Category) []Factor {
	var out []Factor
	for _, f := range registry {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out
}

// LookupFactor returns the catalog entry for id.
func LookupFactor(id string) (Factor, bool) {
	for _, f := range registry {
		if f.ID == id {
			return f, true
		}
	}
	return Factor{}, false
}

// DefaultWeight returns the registry default for id.
func DefaultWeight(id string) (int, bool) {
	f, ok := LookupFactor(id)
	return f.DefaultWeight, ok
}

// FactorResult captures one factor's contribution to the overall score.
type FactorResult struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Weight   int     `json:"weight"`
	Weighted float64 `json:"weighted"`
	Reason   string  `json:"reason"`
}

// articleText is the normalized, space-delimited word stream used for keyword matching.
type articleText string

func newArticleText(a *store.Article) articleText {
	var b strings.Builder
	b.WriteByte(' ')
	write := func(s string) {
		words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			b.WriteString(w)
			b.WriteByte(' ')
		}
	}
	write(a.Title)
	write(a.Summary)
	write(a.Content)
	for _, t := range a.Tags {
		write(t)
	}
	return articleText(b.String())
}

func (t articleText) mentions(keyword string) bool {
	return strings.Contains(string(t), " "+keyword+" ")
}

// factorScore computes one sub-score: clamp(base*skew + boost, 0, 100).
func factorScore(f Factor, base float64, text articleText) FactorResult {
	score := base * f.skew
	reason := "base impact skew"
	for _, kw := range f.keywords {
		if text.mentions(kw) {
			score += keywordBoost
			reason = "keyword: " + kw
			break
		}
	}
	return FactorResult{ID: f.ID, Score: clamp(score, 0, 100), Reason: reason}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func validBase(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= 0 && *v <= 100
}
