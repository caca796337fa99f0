// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/librarian/internal/errs"
	"github.com/AleutianAI/librarian/internal/evidence"
	"github.com/AleutianAI/librarian/internal/governor"
	"github.com/AleutianAI/librarian/internal/provider"
	"github.com/AleutianAI/librarian/internal/storage"
)

// Generator runs the eleven-phase pipeline described in package doc.
//
// # Description
//
// Each phase fills one KnowledgeSections field and records a per-section
// confidence and evidence trail; a phase that fails downgrades that
// section's confidence rather than aborting the entity. Generator holds
// no per-run state of its own besides its collaborators, so one Generator
// is shared by every worker in a bootstrap run; the Governor is what
// actually tracks run-scoped usage across that fan-out.
//
// # Thread Safety
//
// Safe for concurrent use across goroutines so long as Store, Vectors,
// Chat and Embed are themselves safe for concurrent use, which all of
// librarian's implementations are.
type Generator struct {
	Store      storage.Store
	Vectors    storage.VectorIndex // optional; nil disables the similarity sub-phase
	Chat       provider.Chat
	Embed      provider.Embed
	Governor   *governor.Governor
	Defeaters  *evidence.Registry
	ModelID    string
	CheapModel string        // reserved for a preprocessing step; never substituted into knowledge-generation calls
	History    time.Duration // lookback window for git log; 0 = unbounded
}

// Generate runs all eleven phases for one entity and returns the filled
// record plus its outcome. Phase failures, including a budget_exhausted
// refusal of an LLM phase under the governor's defer strategy, are folded
// into Result.Outcome and Result.PhaseErrors; Generate returns an error
// only when ctx is already done before the first phase or the finished
// record cannot be stored.
func (g *Generator) Generate(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("knowledge: generate canceled: %w", err)
	}

	sections := storage.KnowledgeSections{}
	bySection := make(map[string]float64)
	evidenceBySection := make(map[string][]storage.EvidenceRef)
	var phaseErrors []PhaseError

	// Phase 1: identity (deterministic).
	hash := identityHash(in)
	sections.Identity = storage.IdentitySection{ID: in.EntityID, QualifiedName: in.QualifiedName, Hash: hash}
	bySection["identity"] = 1.0
	evidenceBySection["identity"] = []storage.EvidenceRef{{File: in.FilePath, Claim: "deterministic id/hash", Confidence: storage.EvidenceVerified}}

	if existing, ok, err := g.Store.GetUniversalKnowledge(ctx, in.EntityID); err == nil && ok && existing.Hash == hash {
		return Result{Record: existing, Outcome: OutcomeSkipped}, nil
	}

	// Phase 2: semantics (LLM).
	summary, tags, semConf, semEv, err := g.runSemantics(ctx, in)
	if err != nil {
		phaseErrors = append(phaseErrors, PhaseError{Phase: storage.PhaseSemantics, Err: err})
	}
	sections.Semantics = storage.SemanticsSection{Summary: summary, CognitiveTags: tags, CognitiveComplex: cognitiveComplexity(in.SourceText)}
	bySection["semantics"] = semConf
	evidenceBySection["semantics"] = semEv

	// Phase 3: contract parsing (deterministic).
	sections.Contract = ParseContract(in.Signature)
	bySection["contract"] = 1.0
	evidenceBySection["contract"] = []storage.EvidenceRef{{File: in.FilePath, Claim: "parsed from signature", Confidence: storage.EvidenceVerified}}

	// Phase 4: quality (deterministic).
	sections.Quality = AnalyzeQuality(in.SourceText, in.DocComment != "")
	bySection["quality"] = 1.0
	evidenceBySection["quality"] = []storage.EvidenceRef{{File: in.FilePath, Claim: "computed from source text", Confidence: storage.EvidenceVerified}}

	// Phase 5: security (LLM).
	security, secConf, secEv, err := g.runSecurity(ctx, in)
	if err != nil {
		phaseErrors = append(phaseErrors, PhaseError{Phase: storage.PhaseSecurity, Err: err})
	}
	sections.Security = security
	bySection["security"] = secConf
	evidenceBySection["security"] = secEv

	// Phase 6: testing (deterministic from file content).
	sections.Testing = DiscoverTesting(entityBaseName(in.QualifiedName), in.TestFileSource)
	bySection["testing"] = 1.0
	evidenceBySection["testing"] = []storage.EvidenceRef{{File: in.FilePath, Claim: "discovered co-located tests", Confidence: storage.EvidenceVerified}}

	// Phase 7: history & ownership (git-backed).
	reader := NewHistoryReader(in.RepoRoot, g.History)
	commits := reader.Read(ctx, in.FilePath)
	churn, author, last, freq := Summarize(commits)
	sections.History = storage.HistorySection{CommitFrequency: freq, Churn: churn, PrimaryAuthor: author, LastCommit: last}
	sections.Ownership = storage.OwnershipSection{Owner: author}
	historyConf := 1.0
	if len(commits) == 0 {
		historyConf = 0 // no git history available: the section is empty, not wrong
	}
	bySection["history"] = historyConf
	bySection["ownership"] = historyConf

	// Phase 8: rationale (LLM).
	rationale, ratConf, ratEv, err := g.runRationale(ctx, in)
	if err != nil {
		phaseErrors = append(phaseErrors, PhaseError{Phase: storage.PhaseRationale, Err: err})
	}
	sections.Rationale = rationale
	bySection["rationale"] = ratConf
	evidenceBySection["rationale"] = ratEv

	// Phase 9: traceability (deterministic).
	sections.Traceability = ExtractTraceability(in.DocComment, ExtractIssueRefs(commits))
	bySection["traceability"] = 1.0

	// Phase 10: relationships.
	sections.Relationships = g.runRelationships(ctx, in, commits)
	bySection["relationships"] = 0.7 // best-effort: cochange/similarity are approximate by construction

	overall := evidence.OverallConfidence(bySection)

	// Phase 11: evidence collection & defeater activation.
	record := storage.UniversalKnowledgeRecord{
		EntityID:             in.EntityID,
		EntityType:           in.EntityType,
		PurposeSummary:       summary,
		MaintainabilityIndex: sections.Quality.MaintainabilityIndex,
		RiskScore:            sections.Security.RiskScore,
		CyclomaticComplexity: sections.Quality.CyclomaticComplexity,
		CognitiveComplexity:  sections.Quality.CognitiveComplexity,
		Hash:                 hash,
		ValidUntil:           time.Now().Add(30 * 24 * time.Hour),
		Sections:             sections,
	}

	if g.Defeaters != nil {
		defeaters := g.Defeaters.Run(ctx, record, evidence.Context{CurrentHash: hash, Store: g.Store, Workspace: in.RepoRoot}, evidence.DefaultTimeout)
		overall = evidence.ApplyDefeaterPenalty(overall, defeaters)
		sections.Meta.ActiveDefeaters = defeaters
	}

	sections.Meta.BySection = bySection
	sections.Meta.Overall = clamp01(overall)
	sections.Meta.EvidenceBySection = evidenceBySection
	record.Confidence = sections.Meta.Overall
	record.Sections = sections

	if err := g.Store.UpsertUniversalKnowledge(ctx, record); err != nil {
		return Result{}, errs.StorageError("upsert_universal_knowledge", err)
	}

	outcome := OutcomeSuccess
	if len(phaseErrors) > 0 {
		outcome = OutcomePartial
	}
	if bySection["semantics"] == 0 && bySection["security"] == 0 && bySection["rationale"] == 0 {
		outcome = OutcomeFailure
	}

	return Result{Record: record, Outcome: outcome, PhaseErrors: phaseErrors}, nil
}

func identityHash(in Input) string {
	if in.EntityType == storage.EntityModule {
		return storage.HashContent(in.SourceText, strings.Join(in.Exports, ","))
	}
	return storage.HashContent(in.Signature, in.SourceText)
}

func entityBaseName(qualifiedName string) string {
	if i := strings.LastIndex(qualifiedName, "."); i >= 0 {
		return qualifiedName[i+1:]
	}
	return qualifiedName
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// runSemantics asks the LLM for a purpose summary and cognitive tags. On
// provider failure it returns a zero-confidence section rather than
// failing the whole entity, consistent with the generator's partial-result
// tolerance.
func (g *Generator) runSemantics(ctx context.Context, in Input) (summary string, tags []string, confidence float64, ev []storage.EvidenceRef, err error) {
	if g.Chat == nil {
		return "", nil, 0, nil, errs.ProviderUnavailable("knowledge.semantics", nil)
	}
	prompt := fmt.Sprintf(
		"Summarize the purpose of %q in one or two sentences, then list up to 5 lowercase, hyphenated intent tags.\nRespond as:\nSUMMARY: <text>\nTAGS: tag1, tag2\n\nSignature: %s\n\nSource:\n%s",
		in.QualifiedName, in.Signature, truncate(in.SourceText, 4000),
	)
	resp, callErr := g.chat(ctx, "semantics", prompt)
	if callErr != nil {
		return "", nil, 0, nil, callErr
	}
	summary, tags = parseSummaryAndTags(resp.Content)
	if summary == "" {
		return "", nil, 0, nil, errs.UnverifiedByTrace("llm returned no parseable summary")
	}
	return summary, tags, 0.8, []storage.EvidenceRef{{File: in.FilePath, Claim: "llm-generated summary", Confidence: storage.EvidenceInferred}}, nil
}

func (g *Generator) runSecurity(ctx context.Context, in Input) (storage.SecuritySection, float64, []storage.EvidenceRef, error) {
	if g.Chat == nil {
		return storage.SecuritySection{}, 0, nil, errs.ProviderUnavailable("knowledge.security", nil)
	}
	prompt := fmt.Sprintf(
		"Assess the security risk of this code on a 0.0-1.0 scale, list present controls and any OWASP/CWE tags.\nRespond as:\nRISK: <0.0-1.0>\nCONTROLS: c1, c2\nTAGS: t1, t2\n\nSource:\n%s",
		truncate(in.SourceText, 4000),
	)
	resp, err := g.chat(ctx, "security", prompt)
	if err != nil {
		return storage.SecuritySection{}, 0, nil, err
	}
	risk, controls, tags := parseSecurity(resp.Content)
	return storage.SecuritySection{RiskScore: risk, Controls: controls, Tags: tags}, 0.75,
		[]storage.EvidenceRef{{File: in.FilePath, Claim: "llm-assessed risk", Confidence: storage.EvidenceInferred}}, nil
}

func (g *Generator) runRationale(ctx context.Context, in Input) (storage.RationaleSection, float64, []storage.EvidenceRef, error) {
	if in.DocComment == "" {
		return storage.RationaleSection{}, 0, nil, errs.UnverifiedByTrace("no doc comment to derive rationale from")
	}
	if g.Chat == nil {
		return storage.RationaleSection{}, 0, nil, errs.ProviderUnavailable("knowledge.rationale", nil)
	}
	prompt := fmt.Sprintf(
		"Extract any ADR or design-decision references from this doc comment. Respond as:\nADR_REFS: r1, r2 (empty if none)\n\nDoc comment:\n%s",
		in.DocComment,
	)
	resp, err := g.chat(ctx, "rationale", prompt)
	if err != nil {
		return storage.RationaleSection{}, 0, nil, err
	}
	refs := parseADRRefs(resp.Content)
	conf := 0.6
	if len(refs) == 0 {
		conf = 0.3
	}
	return storage.RationaleSection{ADRRefs: refs}, conf,
		[]storage.EvidenceRef{{File: in.FilePath, Claim: "llm-extracted ADR refs", Confidence: storage.EvidenceLiterature}}, nil
}

func (g *Generator) runRelationships(ctx context.Context, in Input, commits []commit) storage.RelationshipsSection {
	var rel storage.RelationshipsSection

	if edges, err := g.Store.GetGraphEdges(ctx, storage.EdgeFilter{EdgeTypes: []storage.EdgeType{storage.EdgeCalls}, FromIDs: []string{in.EntityID}}); err == nil {
		for _, e := range edges {
			rel.CallEdges = append(rel.CallEdges, e.ToID)
		}
	}

	if g.Vectors != nil {
		if hits, err := g.Vectors.FindSimilar(ctx, nil, 5, storage.SimilarityFilter{EntityTypes: []storage.EntityType{in.EntityType}}); err == nil {
			for _, h := range hits {
				if h.EntityID != in.EntityID {
					rel.Similar = append(rel.Similar, h.EntityID)
				}
			}
		}
	}

	return rel
}

// chat wraps a provider call with governor bookkeeping: tokens are
// recorded after the call (the only point their count is known), and a
// defer strategy is honored by refusing the call up front. Every call
// through chat is a knowledge-generation call, so it always runs at
// g.ModelID, full quality, regardless of governor strategy. CheapModel
// is reserved for a separate preprocessing step this generator doesn't
// perform.
func (g *Generator) chat(ctx context.Context, phase string, prompt string) (provider.ChatResponse, error) {
	if g.Governor != nil && g.Governor.Strategy() == governor.StrategyDefer {
		return provider.ChatResponse{}, errs.BudgetExhausted(g.Governor.TightestConstraint())
	}

	resp, err := g.Chat.Chat(ctx, provider.ChatRequest{
		ModelID:   g.ModelID,
		Messages:  []provider.Message{{Role: provider.RoleUser, Content: prompt}},
		MaxTokens: 600,
	})
	if err != nil {
		if g.Governor != nil {
			_, _ = g.Governor.RecordRetry()
		}
		return provider.ChatResponse{}, err
	}
	if g.Governor != nil {
		if _, herr := g.Governor.RecordTokens("", phase, int64(resp.Tokens)); herr != nil {
			return resp, herr
		}
	}
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
