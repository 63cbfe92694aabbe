package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liaisonhq/liaison/internal/memory"
	"github.com/liaisonhq/liaison/internal/search"
	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/pkg/types"
)

const (
	contextMemoryLimit       = 10
	contextCommitmentLimit   = 5
	contextConversationLimit = 3
	contextMinSimilarity     = 0.5
)

// Assembler builds the AgentContext for a scope. Every section degrades
// independently: a failed directory lookup or a down embedding provider
// leaves its section empty instead of failing the build.
type Assembler struct {
	memories   *memory.Service
	search     *search.Engine
	properties PropertyDirectory // nil when the host app exposes no directory
	contacts   ContactDirectory  // nil likewise
	logger     *slog.Logger
}

// NewAssembler creates a context assembler. The directories may be nil.
func NewAssembler(memories *memory.Service, engine *search.Engine, properties PropertyDirectory, contacts ContactDirectory, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		memories:   memories,
		search:     engine,
		properties: properties,
		contacts:   contacts,
		logger:     logger,
	}
}

// Build assembles everything known about the scope that is relevant to the
// given purpose. Purpose drives the semantic memory search; when it is empty
// or search is unavailable, memories fall back to a recency/importance list.
func (a *Assembler) Build(ctx context.Context, scope types.Scope, purpose string) *types.AgentContext {
	agentCtx := &types.AgentContext{}

	if scope.PropertyID != "" && a.properties != nil {
		prop, err := a.properties.GetProperty(ctx, scope.PropertyID)
		if err != nil {
			a.logger.Warn("property lookup failed", "property_id", scope.PropertyID, "error", err)
		} else {
			agentCtx.Property = prop
		}
	}

	if scope.ContactID != "" {
		if a.contacts != nil {
			contact, err := a.contacts.GetContact(ctx, scope.ContactID)
			if err != nil {
				a.logger.Warn("contact lookup failed", "contact_id", scope.ContactID, "error", err)
			} else {
				agentCtx.Contact = contact
			}
		}

		prefs, err := a.memories.GetOrCreatePreferences(ctx, scope.ContactID)
		if err != nil {
			a.logger.Warn("preference lookup failed", "contact_id", scope.ContactID, "error", err)
		} else {
			agentCtx.Preferences = prefs
			agentCtx.SystemInstructions = preferenceInstructions(prefs)
		}
	}

	agentCtx.Memories = a.relevantMemories(ctx, scope, purpose)
	agentCtx.OpenCommitments = a.openCommitments(ctx, scope)
	agentCtx.RecentConversations = a.recentConversations(ctx, scope)

	return agentCtx
}

// preferenceInstructions derives the hard-stop warnings and soft guidance the
// model must see before acting on a contact.
func preferenceInstructions(prefs *types.ContactPreference) []string {
	var out []string
	if prefs.DoNotCall {
		out = append(out, "WARNING: Contact has requested NO PHONE CALLS. Use SMS or email instead.")
	}
	if prefs.DoNotText {
		out = append(out, "WARNING: Contact has requested NO TEXT MESSAGES. Use phone or email instead.")
	}
	if prefs.PreferredTime != "" {
		out = append(out, fmt.Sprintf("Contact prefers to be contacted: %s", prefs.PreferredTime))
	}
	if prefs.FormalityLevel != "" {
		out = append(out, fmt.Sprintf("Communication style: %s", prefs.FormalityLevel))
	}
	return out
}

// relevantMemories runs a semantic search for the purpose, falling back to a
// plain importance-ordered list when no purpose is given or search cannot run.
func (a *Assembler) relevantMemories(ctx context.Context, scope types.Scope, purpose string) []types.ContextMemory {
	if purpose != "" && a.search != nil {
		results, err := a.search.Search(ctx, search.Request{
			Query:         purpose,
			Scope:         scope,
			Limit:         contextMemoryLimit,
			MinSimilarity: contextMinSimilarity,
		})
		if err == nil {
			out := make([]types.ContextMemory, 0, len(results))
			for _, r := range results {
				out = append(out, types.ContextMemory{
					Content:    r.Memory.Content,
					Type:       r.Memory.Type,
					Importance: r.Memory.Importance,
				})
			}
			return out
		}
		if !errors.Is(err, search.ErrEmbeddingUnavailable) {
			a.logger.Warn("semantic search failed, falling back to listing", "error", err)
		}
	}

	memories, err := a.memories.ListMemories(ctx, storage.MemoryFilter{
		Scope: scope,
		Limit: contextMemoryLimit,
	})
	if err != nil {
		a.logger.Warn("memory listing failed", "error", err)
		return nil
	}
	out := make([]types.ContextMemory, 0, len(memories))
	for _, m := range memories {
		out = append(out, types.ContextMemory{
			Content:    m.Content,
			Type:       m.Type,
			Importance: m.Importance,
		})
	}
	return out
}

func (a *Assembler) openCommitments(ctx context.Context, scope types.Scope) []types.ContextCommitment {
	memories, err := a.memories.ListMemories(ctx, storage.MemoryFilter{
		Scope: scope,
		Types: []types.MemoryType{types.MemoryCommitment},
		Limit: contextCommitmentLimit,
	})
	if err != nil {
		a.logger.Warn("commitment listing failed", "error", err)
		return nil
	}
	out := make([]types.ContextCommitment, 0, len(memories))
	for _, m := range memories {
		out = append(out, types.ContextCommitment{Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return out
}

func (a *Assembler) recentConversations(ctx context.Context, scope types.Scope) []types.ContextConversation {
	summaries, err := a.memories.RecentConversations(ctx, scope, contextConversationLimit)
	if err != nil {
		a.logger.Warn("conversation listing failed", "error", err)
		return nil
	}
	out := make([]types.ContextConversation, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, types.ContextConversation{
			Summary:     s.Summary,
			Date:        s.ConversationAt,
			Sentiment:   s.Sentiment,
			ActionItems: s.ActionItems,
		})
	}
	return out
}

// FormatPrompt renders an assembled context as the plain-text block injected
// into model prompts. Empty sections are omitted entirely.
func FormatPrompt(agentCtx *types.AgentContext) string {
	var sections []string

	if len(agentCtx.SystemInstructions) > 0 {
		lines := []string{"=== IMPORTANT ==="}
		for _, inst := range agentCtx.SystemInstructions {
			lines = append(lines, "- "+inst)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if p := agentCtx.Property; p != nil {
		lines := []string{"=== Property Information ==="}
		lines = append(lines, "Name: "+p.Name)
		if p.Address != "" {
			lines = append(lines, "Address: "+p.Address)
		}
		if p.Type != "" {
			lines = append(lines, "Type: "+p.Type)
		}
		if p.Status != "" {
			lines = append(lines, "Status: "+p.Status)
		}
		if p.Description != "" {
			lines = append(lines, "Description: "+p.Description)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if c := agentCtx.Contact; c != nil {
		lines := []string{"=== Contact Information ==="}
		lines = append(lines, "Name: "+c.Name)
		if c.Company != "" {
			lines = append(lines, "Company: "+c.Company)
		}
		if c.Type != "" {
			lines = append(lines, "Role: "+c.Type)
		}
		if c.Notes != "" {
			lines = append(lines, "Notes: "+c.Notes)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(agentCtx.Memories) > 0 {
		lines := []string{"=== What We Know ==="}
		for _, m := range agentCtx.Memories {
			lines = append(lines, fmt.Sprintf("- [%s] %s", m.Type, m.Content))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(agentCtx.OpenCommitments) > 0 {
		lines := []string{"=== Open Commitments ==="}
		for _, c := range agentCtx.OpenCommitments {
			lines = append(lines, fmt.Sprintf("- %s (from %s)", c.Content, c.CreatedAt.Format("2006-01-02")))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(agentCtx.RecentConversations) > 0 {
		lines := []string{"=== Recent Conversations ==="}
		for _, conv := range agentCtx.RecentConversations {
			lines = append(lines, fmt.Sprintf("[%s] %s", conv.Date.Format("2006-01-02"), conv.Summary))
			if len(conv.ActionItems) > 0 {
				lines = append(lines, "  Action items: "+strings.Join(conv.ActionItems, ", "))
			}
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}
