package classify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/licitaradar/radar/internal/model"
)

// Verdict is the outcome of classifying one item against one sector.
// Degraded marks verdicts decided by the density fallback because the
// arbiter was missing or failed.
type Verdict struct {
	Include    bool
	Source     model.RelevanceSource
	Confidence model.ConfidenceLevel
	Reason     string
	Degraded   bool
}

// Arbiter decides ambiguous items. zone tells the arbiter how strict
// to be: llm_conservative verdicts require stronger evidence than
// llm_standard ones.
type Arbiter interface {
	Arbitrate(ctx context.Context, item model.ProcurementItem, profile SectorProfile, zone model.RelevanceSource) (bool, error)
}

// Options tune the layered decision procedure. Zero values fall back
// to the defaults below.
type Options struct {
	ProximityWindow int     // words on each side of a keyword match
	AcceptDensity   float64 // density above which an item is accepted outright
	StandardDensity float64 // lower bound of the llm_standard zone
	MinDensity      float64 // lower bound of the llm_conservative zone
	MaxConcurrency  int     // parallel arbiter calls in ClassifyAll
}

const (
	defaultProximityWindow = 5
	defaultAcceptDensity   = 0.05
	defaultStandardDensity = 0.02
	defaultMinDensity      = 0.01
	defaultMaxConcurrency  = 8
)

func (o Options) withDefaults() Options {
	if o.ProximityWindow <= 0 {
		o.ProximityWindow = defaultProximityWindow
	}
	if o.AcceptDensity <= 0 {
		o.AcceptDensity = defaultAcceptDensity
	}
	if o.StandardDensity <= 0 {
		o.StandardDensity = defaultStandardDensity
	}
	if o.MinDensity <= 0 {
		o.MinDensity = defaultMinDensity
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = defaultMaxConcurrency
	}
	return o
}

// Classifier applies the layered relevance procedure: exclusion
// phrases, keyword density zoning, proximity cross-sector veto, LLM
// arbitration. Each item is judged independently, so ClassifyAll runs
// items in parallel.
type Classifier struct {
	profiles *ProfileSet
	arbiter  Arbiter
	opts     Options
}

func NewClassifier(profiles *ProfileSet, arbiter Arbiter, opts Options) *Classifier {
	return &Classifier{
		profiles: profiles,
		arbiter:  arbiter,
		opts:     opts.withDefaults(),
	}
}

// keywordMatch is one keyword occurrence in the tokenized item text.
type keywordMatch struct {
	keyword string
	start   int // token index of the first matched word
	end     int // token index one past the last matched word
}

// Classify runs the decision procedure for a single item.
func (c *Classifier) Classify(ctx context.Context, item model.ProcurementItem, sector string) (Verdict, error) {
	profile, ok := c.profiles.Get(sector)
	if !ok {
		return Verdict{}, fmt.Errorf("classify: unknown sector %q", sector)
	}

	text := Normalize(item.Object)
	tokens := Tokenize(item.Object)
	if len(tokens) == 0 {
		return Verdict{Include: false, Reason: "empty text"}, nil
	}

	// Layer 1: exclusion phrases end the procedure immediately.
	for _, phrase := range profile.Exclusions {
		if containsPhrase(text, Normalize(phrase)) {
			return Verdict{Include: false, Reason: "exclusion: " + phrase}, nil
		}
	}

	// Layer 2: keyword density zoning.
	matches, matchedTokens := findKeywordMatches(tokens, profile.Keywords)
	density := float64(matchedTokens) / float64(len(tokens))

	// Layer 3: a signature term of another sector near any match means
	// the notice belongs to that sector, not this one.
	if len(matches) > 0 {
		if term, vetoed := c.proximityVeto(tokens, matches, sector); vetoed {
			return Verdict{Include: false, Reason: "cross-sector signature: " + term}, nil
		}
	}

	switch {
	case density > c.opts.AcceptDensity:
		return Verdict{
			Include:    true,
			Source:     model.RelevanceKeyword,
			Confidence: model.ConfidenceHigh,
			Reason:     fmt.Sprintf("keyword density %.1f%%", density*100),
		}, nil
	case density >= c.opts.StandardDensity:
		return c.arbitrate(ctx, item, profile, model.RelevanceLLMStandard, model.ConfidenceMedium)
	case density >= c.opts.MinDensity:
		return c.arbitrate(ctx, item, profile, model.RelevanceLLMConservative, model.ConfidenceLow)
	case len(matches) == 0 && c.zeroMatchCandidate(text, profile):
		// Layer 4: no keyword hit but the text carries this sector's
		// own signature, worth one cheap LLM look.
		return c.arbitrate(ctx, item, profile, model.RelevanceLLMZeroMatch, model.ConfidenceLow)
	default:
		return Verdict{Include: false, Reason: fmt.Sprintf("keyword density %.1f%% below floor", density*100)}, nil
	}
}

func (c *Classifier) arbitrate(ctx context.Context, item model.ProcurementItem, profile SectorProfile, zone model.RelevanceSource, conf model.ConfidenceLevel) (Verdict, error) {
	if c.arbiter == nil {
		return c.arbiterFallback(zone, conf, "no arbiter configured"), nil
	}
	include, err := c.arbiter.Arbitrate(ctx, item, profile, zone)
	if err != nil {
		zap.L().Warn("classify: arbiter unavailable",
			zap.String("item", item.Key()),
			zap.String("zone", string(zone)),
			zap.Error(err))
		return c.arbiterFallback(zone, conf, "llm unavailable"), nil
	}
	reason := "llm reject"
	if include {
		reason = "llm accept"
	}
	return Verdict{Include: include, Source: zone, Confidence: conf, Reason: reason}, nil
}

// arbiterFallback decides ambiguous items when the LLM cannot. The
// standard zone keeps the item so a degraded LLM never hides probable
// matches; the conservative and zero-match zones drop it.
func (c *Classifier) arbiterFallback(zone model.RelevanceSource, conf model.ConfidenceLevel, reason string) Verdict {
	if zone == model.RelevanceLLMStandard {
		return Verdict{Include: true, Source: zone, Confidence: conf, Reason: reason + ", kept by density", Degraded: true}
	}
	return Verdict{Include: false, Source: zone, Confidence: conf, Reason: reason, Degraded: true}
}

func (c *Classifier) proximityVeto(tokens []string, matches []keywordMatch, sector string) (string, bool) {
	foreign := c.profiles.ForeignSignatures(sector)
	if len(foreign) == 0 {
		return "", false
	}
	w := c.opts.ProximityWindow
	for _, m := range matches {
		lo := m.start - w
		if lo < 0 {
			lo = 0
		}
		hi := m.end + w
		if hi > len(tokens) {
			hi = len(tokens)
		}
		window := tokens[lo:hi]
		for _, sig := range foreign {
			if windowContains(window, Tokenize(sig)) {
				return sig, true
			}
		}
	}
	return "", false
}

func (c *Classifier) zeroMatchCandidate(text string, profile SectorProfile) bool {
	for _, term := range profile.SignatureTerms {
		if containsPhrase(text, Normalize(term)) {
			return true
		}
	}
	return false
}

// findKeywordMatches locates every occurrence of every keyword in the
// token stream. Multi-word keywords match as consecutive tokens.
func findKeywordMatches(tokens []string, keywords []string) ([]keywordMatch, int) {
	var matches []keywordMatch
	matched := 0
	for _, kw := range keywords {
		kwTokens := Tokenize(kw)
		if len(kwTokens) == 0 {
			continue
		}
		for i := 0; i+len(kwTokens) <= len(tokens); i++ {
			if tokensEqual(tokens[i:i+len(kwTokens)], kwTokens) {
				matches = append(matches, keywordMatch{keyword: kw, start: i, end: i + len(kwTokens)})
				matched += len(kwTokens)
				i += len(kwTokens) - 1
			}
		}
	}
	return matches, matched
}

func tokensEqual(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func windowContains(window, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(window); i++ {
		if tokensEqual(window[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}

// containsPhrase matches a normalized phrase on word boundaries.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return windowContains(Tokenize(text), Tokenize(phrase))
}

// ClassifyAll evaluates every item in parallel and returns the kept
// items, annotated, in their original order. The bool reports whether
// any verdict fell back because the arbiter was unavailable; the flag
// belongs to this call alone, concurrent searches never see each
// other's failures.
func (c *Classifier) ClassifyAll(ctx context.Context, items []model.ProcurementItem, sector string) ([]model.ProcurementItem, bool, error) {
	verdicts := make([]Verdict, len(items))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxConcurrency)

	var mu sync.Mutex
	for i, item := range items {
		g.Go(func() error {
			v, err := c.Classify(gCtx, item, sector)
			if err != nil {
				return err
			}
			mu.Lock()
			verdicts[i] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	var kept []model.ProcurementItem
	degraded := false
	for i, v := range verdicts {
		if v.Degraded {
			degraded = true
		}
		if !v.Include {
			continue
		}
		item := items[i]
		item.RelevanceSource = v.Source
		item.Confidence = v.Confidence
		item.RelevanceReason = v.Reason
		kept = append(kept, item)
	}
	return kept, degraded, nil
}
