// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package librarian

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AleutianAI/librarian/internal/feedback"
	"github.com/AleutianAI/librarian/internal/query"
)

// Classification is the task's kind, decided by keyword rules over the
// description the same way query.Classify reads intent from free text.
type Classification string

const (
	ClassificationBugFix           Classification = "bug_fix"
	ClassificationFeatureAdd       Classification = "feature_add"
	ClassificationFeatureModify    Classification = "feature_modify"
	ClassificationRefactor         Classification = "refactor"
	ClassificationPerformance      Classification = "performance"
	ClassificationSecurity         Classification = "security"
	ClassificationDocumentation    Classification = "documentation"
	ClassificationTest             Classification = "test"
	ClassificationDependencyUpdate Classification = "dependency_update"
	ClassificationConfiguration    Classification = "configuration"
)

// Complexity buckets a task by how much surface area it touches.
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
	ComplexityEpic     Complexity = "epic"
)

// TaskPlan is PlanTask's output.
type TaskPlan struct {
	Classification   Classification
	Complexity       Complexity
	Steps            []string
	ContextFiles     []string
	FilesToModify    []string
	TestsRequired    []string
	Risks            []string
	PreflightChecks  []string
	Confidence       float64
}

type classifierRule struct {
	classification Classification
	patterns       []*regexp.Regexp
}

var classifierRules = buildClassifierRules()

func buildClassifierRules() []classifierRule {
	build := func(c Classification, patterns ...string) classifierRule {
		res := make([]*regexp.Regexp, len(patterns))
		for i, p := range patterns {
			res[i] = regexp.MustCompile(`(?i)` + p)
		}
		return classifierRule{classification: c, patterns: res}
	}
	return []classifierRule{
		build(ClassificationBugFix, `\bfix\b`, `\bbug\b`, `\bbroken\b`, `\bcrash(es|ing)?\b`, `\bregression\b`),
		build(ClassificationSecurity, `\bsecurity\b`, `\bvulnerab`, `\bauth\b`, `\bcve\b`, `\bexploit\b`),
		build(ClassificationPerformance, `\bperformance\b`, `\bslow\b`, `\blatency\b`, `\boptimi[sz]e\b`, `\bmemory leak\b`),
		build(ClassificationDependencyUpdate, `\bupgrade\b`, `\bbump\b`, `\bdependency\b`, `\bupdate .* version\b`),
		build(ClassificationConfiguration, `\bconfig(uration)?\b`, `\benv(ironment)? var`, `\bflag\b`),
		build(ClassificationDocumentation, `\bdocs?\b`, `\bdocument(ation)?\b`, `\breadme\b`, `\bcomment\b`),
		build(ClassificationTest, `\btest(s|ing)?\b`, `\bcoverage\b`, `\bassert`),
		build(ClassificationRefactor, `\brefactor\b`, `\bclean ?up\b`, `\brestructure\b`, `\bsimplify\b`),
		build(ClassificationFeatureModify, `\bchange\b`, `\bmodify\b`, `\bupdate\b`, `\bextend\b`),
		build(ClassificationFeatureAdd, `\badd\b`, `\bimplement\b`, `\bnew feature\b`, `\bsupport for\b`),
	}
}

// classifyTask decides a task's classification from its description. Rules
// are checked in the fixed order above (most specific first); the last
// rule (feature_add) is the catch-all default when nothing else matches.
func classifyTask(description string) Classification {
	lower := strings.ToLower(description)
	for _, rule := range classifierRules {
		for _, re := range rule.patterns {
			if re.MatchString(lower) {
				return rule.classification
			}
		}
	}
	return ClassificationFeatureAdd
}

// complexityFor derives a bucket from how many files the task touches:
// contextFiles plus filesToModify.
func complexityFor(contextFiles, filesToModify int) Complexity {
	total := contextFiles + filesToModify
	switch {
	case total == 0:
		return ComplexityTrivial
	case total <= 2:
		return ComplexitySimple
	case total <= 6:
		return ComplexityModerate
	case total <= 15:
		return ComplexityComplex
	default:
		return ComplexityEpic
	}
}

var stepTemplates = map[Classification][]string{
	ClassificationBugFix:           {"Reproduce the failure", "Locate the faulting code path", "Write a failing test", "Apply the fix", "Confirm the test passes"},
	ClassificationFeatureAdd:       {"Identify the integration point", "Design the new surface", "Implement the feature", "Add tests", "Update documentation"},
	ClassificationFeatureModify:    {"Identify all call sites", "Change the behavior", "Update affected tests", "Verify no regressions"},
	ClassificationRefactor:         {"Confirm test coverage exists before changing anything", "Apply the restructuring in small steps", "Re-run tests after each step"},
	ClassificationPerformance:      {"Profile the hot path", "Identify the bottleneck", "Apply the optimization", "Benchmark before/after"},
	ClassificationSecurity:         {"Reproduce the vulnerability", "Assess blast radius", "Apply the fix", "Add a regression test for the exploit path"},
	ClassificationDocumentation:    {"Identify stale or missing docs", "Update the documentation", "Verify examples still compile/run"},
	ClassificationTest:             {"Identify the untested path", "Write the test", "Confirm it fails before the fix and passes after"},
	ClassificationDependencyUpdate: {"Check the changelog for breaking changes", "Bump the dependency", "Run the full test suite", "Fix any breakage"},
	ClassificationConfiguration:    {"Identify the configuration surface", "Apply the change", "Verify default behavior is unchanged"},
}

func stepsFor(c Classification) []string {
	if steps, ok := stepTemplates[c]; ok {
		out := make([]string, len(steps))
		copy(out, steps)
		return out
	}
	return []string{"Investigate", "Implement", "Test"}
}

var riskTemplates = map[Classification]string{
	ClassificationRefactor:         "behavior-preserving changes can still break callers relying on undocumented side effects",
	ClassificationSecurity:         "an incomplete fix can leave the vulnerability partially exploitable",
	ClassificationDependencyUpdate: "transitive dependency changes can introduce incompatibilities outside the direct diff",
	ClassificationPerformance:      "optimizations can trade correctness or readability for speed if not carefully scoped",
}

// PlanTask classifies the task, resolves context/modification files via
// the query engine, derives
// complexity from the resolved file counts, and flags any resolved file
// whose staleness decay has dropped below 0.6 as needing a re-bootstrap
// before the plan is acted on.
func (l *Librarian) PlanTask(ctx context.Context, description, workspace string) (TaskPlan, error) {
	classification := classifyTask(description)

	resp, err := l.Engine.Query(ctx, query.Request{Text: description, Perspective: query.PerspectiveModification, TopK: query.DefaultTopK})
	if err != nil {
		return TaskPlan{}, err
	}

	contextFiles := make([]string, 0, len(resp.Packs))
	filesToModify := make([]string, 0, len(resp.Packs))
	testsRequired := make([]string, 0)
	preflight := make([]string, 0)
	seen := map[string]bool{}

	for _, pack := range resp.Packs {
		for _, f := range pack.RelatedFiles {
			if seen[f] || (workspace != "" && !strings.HasPrefix(f, workspace)) {
				continue
			}
			seen[f] = true
			contextFiles = append(contextFiles, f)
			if strings.HasSuffix(f, "_test.go") {
				testsRequired = append(testsRequired, f)
				continue
			}
			filesToModify = append(filesToModify, f)
			testsRequired = append(testsRequired, testFileGuess(f))
		}
	}

	if files, err := l.Store.GetFiles(ctx, append(append([]string{}, contextFiles...), filesToModify...)); err == nil {
		now := time.Now()
		for _, f := range files {
			if feedback.DecayedConfidence(f.Confidence, f.IndexedAt, now) < 0.6 {
				preflight = append(preflight, fmt.Sprintf("re-bootstrap %s before acting: confidence has decayed below 0.6", f.Path))
			}
		}
	}

	steps := stepsFor(classification)
	var risks []string
	if r, ok := riskTemplates[classification]; ok {
		risks = append(risks, r)
	}

	return TaskPlan{
		Classification:  classification,
		Complexity:      complexityFor(len(contextFiles), len(filesToModify)),
		Steps:           steps,
		ContextFiles:    contextFiles,
		FilesToModify:   filesToModify,
		TestsRequired:   dedupeStrings(testsRequired),
		Risks:           risks,
		PreflightChecks: preflight,
		Confidence:      resp.TotalConfidence,
	}, nil
}

func testFileGuess(sourceFile string) string {
	if strings.HasSuffix(sourceFile, ".go") {
		return strings.TrimSuffix(sourceFile, ".go") + "_test.go"
	}
	return sourceFile + "_test"
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
