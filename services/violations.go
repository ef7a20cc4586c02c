package services

import (
	"regexp"
	"strings"
)

// ViolationCategory names one class of policy-sensitive content.
type ViolationCategory string

const (
	CategoryProfanity ViolationCategory = "profanity"
	CategorySexual    ViolationCategory = "sexual"
	CategoryPolitical ViolationCategory = "political"
	CategoryOffTopic  ViolationCategory = "off_topic"
)

// RiskLevel buckets a weighted violation total.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ViolationScore is the result of scoring one piece of text.
type ViolationScore struct {
	PerCategory map[ViolationCategory]int `json:"per_category"`
	Total       int                       `json:"total"`
	RiskLevel   RiskLevel                 `json:"risk_level"`
}

// ViolationDetector scores candidate text for policy-sensitive content via
// category-specific word-boundary lexicons. It is stateless and
// side-effect-free; any classifier that returns a non-negative count per
// category for a given text can stand in for it.
type ViolationDetector struct {
	weights  map[ViolationCategory]int
	patterns map[ViolationCategory][]*regexp.Regexp
	// offTopicTerms keeps the raw off-topic lexicon so terms that appear in
	// the job description can be exempted.
	offTopicTerms []string
}

var lexicons = map[ViolationCategory][]string{
	CategoryProfanity: {
		"fuck", "fucking", "shit", "bullshit", "asshole", "bitch",
		"bastard", "damn", "crap", "dick", "piss",
	},
	CategorySexual: {
		"sex", "sexual", "sexy", "nude", "naked", "porn", "erotic",
		"horny", "seductive",
	},
	CategoryPolitical: {
		"election", "democrat", "republican", "liberal", "conservative",
		"politics", "political", "president", "congress", "senate",
		"vote", "voting", "campaign", "partisan",
	},
	CategoryOffTopic: {
		"weather", "football", "basketball", "soccer", "movie", "movies",
		"netflix", "vacation", "lottery", "gossip", "celebrity",
		"girlfriend", "boyfriend", "salary negotiation",
	},
}

// NewViolationDetector compiles the category lexicons with the configured
// weights. Weights are configuration with preserved defaults (2/3/1/1), not
// tuned values.
func NewViolationDetector(cfg InterviewConfig) *ViolationDetector {
	d := &ViolationDetector{
		weights: map[ViolationCategory]int{
			CategoryProfanity: cfg.ProfanityWeight,
			CategorySexual:    cfg.SexualWeight,
			CategoryPolitical: cfg.PoliticalWeight,
			CategoryOffTopic:  cfg.OffTopicWeight,
		},
		patterns:      make(map[ViolationCategory][]*regexp.Regexp),
		offTopicTerms: lexicons[CategoryOffTopic],
	}
	for category, terms := range lexicons {
		for _, term := range terms {
			d.patterns[category] = append(d.patterns[category],
				regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(term)+`\b`))
		}
	}
	return d
}

// Score counts category hits in text and returns per-category counts, the
// weighted total, and a risk bucket. Off-topic terms that appear in the job
// description are not counted: talking about "movies" is on-topic when the
// job is about streaming.
func (d *ViolationDetector) Score(text, jobDescription string) ViolationScore {
	score := ViolationScore{
		PerCategory: map[ViolationCategory]int{
			CategoryProfanity: 0,
			CategorySexual:    0,
			CategoryPolitical: 0,
			CategoryOffTopic:  0,
		},
	}

	jobLower := strings.ToLower(jobDescription)
	for category, patterns := range d.patterns {
		for i, pattern := range patterns {
			if category == CategoryOffTopic && jobLower != "" &&
				strings.Contains(jobLower, d.offTopicTerms[i]) {
				continue
			}
			score.PerCategory[category] += len(pattern.FindAllStringIndex(text, -1))
		}
	}

	for category, count := range score.PerCategory {
		score.Total += count * d.weights[category]
	}
	score.RiskLevel = riskLevelFor(score.Total)
	return score
}

func riskLevelFor(total int) RiskLevel {
	switch {
	case total == 0:
		return RiskSafe
	case total <= 2:
		return RiskLow
	case total <= 5:
		return RiskMedium
	case total <= 10:
		return RiskHigh
	default:
		return RiskCritical
	}
}
