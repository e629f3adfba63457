package optimizer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/review-tuner/internal/adjust"
	"github.com/danielpatrickdp/review-tuner/internal/learning"
	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/patterns"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
	"github.com/danielpatrickdp/review-tuner/internal/rules"
	"github.com/danielpatrickdp/review-tuner/internal/variation"
)

// #region optimizer-struct

// Optimizer turns analysis feedback into an adjusted parameter set for the
// next attempt. Every dependency except the rule table is optional; a nil
// dependency makes its pass contribute nothing.
type Optimizer struct {
	table            rules.Table
	learner          *learning.Learner
	tracker          *patterns.Tracker
	catalog          variation.Catalog
	sink             ProvenanceSink
	chronicThreshold int
}

// Deps bundles the optional collaborators.
type Deps struct {
	Learner          *learning.Learner
	Tracker          *patterns.Tracker
	Catalog          variation.Catalog
	Sink             ProvenanceSink
	ChronicThreshold int // 0 = DefaultChronicThreshold
}

// NewOptimizer creates an Optimizer over an explicit rule table.
func NewOptimizer(table rules.Table, deps Deps) *Optimizer {
	threshold := deps.ChronicThreshold
	if threshold <= 0 {
		threshold = DefaultChronicThreshold
	}
	return &Optimizer{
		table:            table,
		learner:          deps.Learner,
		tracker:          deps.Tracker,
		catalog:          deps.Catalog,
		sink:             deps.Sink,
		chronicThreshold: threshold,
	}
}

// #endregion optimizer-struct

// #region run-state

// run accumulates one Optimize call. Passes read and replace settings in order.
type run struct {
	entityID     string
	settings     params.ParameterSet
	changes      []Change
	reasons      []string
	seenReason   map[string]bool
	instructions []string
	seenKey      map[string]bool
}

func (r *run) apply(rule adjust.Rule, priority adjust.Priority, pass Pass, key, reason string) {
	next, ch := adjust.Apply(r.settings, rule, priority)
	r.settings = next
	if !ch.Changed {
		return
	}
	r.changes = append(r.changes, Change{
		Param:    rule.TargetPath,
		From:     ch.From.String(),
		To:       ch.To.String(),
		Priority: priority,
		Reason:   reason,
		Pass:     pass,
		Key:      key,
	})
	if !r.seenReason[reason] {
		r.seenReason[reason] = true
		r.reasons = append(r.reasons, reason)
	}
}

func (r *run) instruct(catalog variation.Catalog, key string) {
	if r.seenKey[key] {
		return
	}
	r.seenKey[key] = true
	if phrase := catalog.Phrase(r.entityID, key); phrase != "" {
		r.instructions = append(r.instructions, phrase)
	}
}

// #endregion run-state

// #region optimize

// Optimize applies, in order: chronic weak points of opts.EntityID at high
// priority, the current analysis' weak points at high or medium priority, and
// optionally the best success-pattern combo at low priority. Later passes see
// the output of earlier ones and may move the same path again.
//
// analysis may be nil. Optimize has no failure path: storage errors are
// logged and the affected pass contributes nothing.
func (o *Optimizer) Optimize(ctx context.Context, current params.ParameterSet, analysis *quality.Analysis, opts Options) Result {
	r := &run{
		entityID:   opts.EntityID,
		settings:   current.Clone(),
		seenReason: map[string]bool{},
		seenKey:    map[string]bool{},
	}

	// 1. Chronic pass
	o.chronicPass(ctx, r)

	// 2. Current-attempt pass
	if analysis != nil {
		for _, wp := range analysis.WeakPoints {
			entry, ok := o.table.Lookup(wp.Key())
			if !ok {
				continue
			}
			priority := adjust.PriorityMedium
			if wp.HighPriority() {
				priority = adjust.PriorityHigh
			}
			for _, rule := range entry.Rules {
				r.apply(rule, priority, PassCurrent, wp.Key(), entry.Description)
			}
			r.instruct(o.catalog, wp.Key())
		}
	}

	// 3. Success-pattern pass
	if opts.UseSuccessPatterns {
		o.patternPass(ctx, r)
	}

	res := Result{
		Settings:     r.settings,
		Changes:      r.changes,
		Reasons:      r.reasons,
		ChangeCount:  len(r.changes),
		Instructions: r.instructions,
	}
	if res.Changes == nil {
		res.Changes = []Change{}
	}
	if res.Reasons == nil {
		res.Reasons = []string{}
	}
	if analysis != nil {
		res.OriginalScore = analysis.TotalScore
	}

	if opts.Record && analysis != nil {
		o.record(ctx, current, analysis, opts)
	}

	log.Info().
		Str("component", "optimizer").
		Str("entity", opts.EntityID).
		Float64("score", res.OriginalScore).
		Int("changes", res.ChangeCount).
		Msg(res.Summary())

	if o.sink != nil {
		err := o.sink.LogRun(ctx, RunRecord{
			EntityID:      opts.EntityID,
			OriginalScore: res.OriginalScore,
			Changes:       res.Changes,
			Before:        current,
			After:         res.Settings,
			Analysis:      analysis,
		})
		if err != nil {
			log.Warn().Err(err).Str("component", "optimizer").Msg("provenance log failed")
		}
	}

	return res
}

func (o *Optimizer) chronicPass(ctx context.Context, r *run) {
	if o.learner == nil || r.entityID == "" {
		return
	}
	rec, err := o.learner.Get(ctx, r.entityID)
	if err != nil {
		log.Warn().Err(err).Str("component", "optimizer").Str("entity", r.entityID).Msg("chronic pass skipped")
		return
	}
	if rec == nil {
		return
	}
	for _, c := range rec.Chronic(o.chronicThreshold) {
		entry, ok := o.table.Lookup(c.Key())
		if !ok {
			continue
		}
		reason := fmt.Sprintf("recurring in %d attempts: %s", c.Count, entry.Description)
		for _, rule := range entry.Rules {
			r.apply(rule, adjust.PriorityHigh, PassChronic, c.Key(), reason)
		}
		r.instruct(o.catalog, c.Key())
	}
}

func (o *Optimizer) patternPass(ctx context.Context, r *run) {
	if o.tracker == nil {
		return
	}
	combo, pat, err := o.tracker.BestCombo(ctx)
	if err != nil {
		log.Warn().Err(err).Str("component", "optimizer").Msg("pattern pass skipped")
		return
	}
	if combo == nil {
		return
	}

	persona, _ := r.settings.GetPath(params.PathPersona).Str()
	if persona != combo.Persona {
		return
	}

	reason := fmt.Sprintf("success pattern %s (avg %.1f over %d uses)", pat.PatternKey, pat.AvgScoreImpact, pat.UsageCount)
	if combo.Structure != "" {
		r.apply(adjust.Rule{TargetPath: params.PathStructure, Action: adjust.ActionRecommend, Operands: []string{combo.Structure}},
			adjust.PriorityLow, PassPattern, pat.PatternKey, reason)
	}
	if combo.Tone != "" {
		r.apply(adjust.Rule{TargetPath: params.PathTone, Action: adjust.ActionRecommend, Operands: []string{combo.Tone}},
			adjust.PriorityLow, PassPattern, pat.PatternKey, reason)
	}
}

// #endregion optimize

// #region record

// record stores the attempt after the passes so it never counts as chronic
// for its own optimization.
func (o *Optimizer) record(ctx context.Context, used params.ParameterSet, analysis *quality.Analysis, opts Options) {
	if opts.EntityID == "" {
		return
	}
	if o.learner != nil {
		if err := o.learner.RecordAttempt(ctx, opts.EntityID, analysis.WeakPoints, analysis.TotalScore); err != nil {
			log.Warn().Err(err).Str("component", "optimizer").Msg("record attempt failed")
		}
	}
	if o.tracker != nil {
		_, err := o.tracker.Extract(ctx, patterns.Attempt{
			EntityID:   opts.EntityID,
			TotalScore: analysis.TotalScore,
			Details:    analysis.Details,
			Settings:   used,
		})
		if err != nil {
			log.Warn().Err(err).Str("component", "optimizer").Msg("pattern extraction failed")
		}
	}
}

// #endregion record
