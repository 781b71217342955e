// Package assist wraps every language-model call site of a sync run. Each
// call has its own response type and is validated before it leaves the
// package; a reply of the wrong shape wraps apperr.ErrInvalidResponse.
package assist

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/llm"
	"github.com/starford/playbooksync/internal/models"
)

// Assistant issues classification, edit, clustering and drafting requests.
type Assistant struct {
	client llm.Client
}

// New creates an Assistant over client.
func New(client llm.Client) *Assistant {
	return &Assistant{client: client}
}

// Classify labels how entry relates to the document it is most similar to.
func (a *Assistant) Classify(ctx context.Context, entry models.KnowledgeEntry, docText, docTitle string) (models.Classification, error) {
	reply, err := a.client.Complete(ctx, classifySystem, classifyPrompt(entry, docText, docTitle))
	if err != nil {
		return models.Classification{}, fmt.Errorf("assist: classify: %w", err)
	}
	var c models.Classification
	if err := llm.Decode(reply, &c); err != nil {
		return models.Classification{}, fmt.Errorf("assist: classify: %w", err)
	}
	c.Action = models.Action(strings.ToLower(strings.TrimSpace(string(c.Action))))
	c.Rationale = strings.TrimSpace(c.Rationale)
	c.TargetSection = cleanSection(c.TargetSection)
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Action, validation.Required,
			validation.In(models.ActionEnrich, models.ActionRedundant, models.ActionTangential)),
		validation.Field(&c.Rationale, validation.Required),
	); err != nil {
		return models.Classification{}, invalid("classify", err)
	}
	return c, nil
}

// SynthesizeEdit asks for one edit that folds entries into the document.
func (a *Assistant) SynthesizeEdit(ctx context.Context, entries []models.KnowledgeEntry, docText, docTitle, section string) (models.GeneratedEdit, error) {
	reply, err := a.client.Complete(ctx, editSystem, editPrompt(entries, docText, docTitle, section))
	if err != nil {
		return models.GeneratedEdit{}, fmt.Errorf("assist: synthesize edit: %w", err)
	}
	var e models.GeneratedEdit
	if err := llm.Decode(reply, &e); err != nil {
		return models.GeneratedEdit{}, fmt.Errorf("assist: synthesize edit: %w", err)
	}
	e.NewContent = strings.Trim(e.NewContent, "\n")
	e.Summary = strings.TrimSpace(e.Summary)
	if err := validation.ValidateStruct(&e,
		validation.Field(&e.NewContent, validation.Required, validation.By(notBlank)),
	); err != nil {
		return models.GeneratedEdit{}, invalid("synthesize edit", err)
	}
	if e.Summary == "" {
		e.Summary = fmt.Sprintf("add %d entries to %s", len(entries), docTitle)
	}
	return e, nil
}

type clusterReply struct {
	Clusters []clusterItem `json:"clusters"`
}

type clusterItem struct {
	Title    string   `json:"title"`
	Module   string   `json:"module"`
	EntryIDs []string `json:"entry_ids"`
}

// Cluster groups orphaned entries by theme. Ids outside entries are dropped,
// an entry joins at most one cluster and empty clusters are removed.
func (a *Assistant) Cluster(ctx context.Context, entries []models.KnowledgeEntry, modules []models.Module) ([]models.OrphanCluster, error) {
	reply, err := a.client.Complete(ctx, clusterSystem, clusterPrompt(entries, modules))
	if err != nil {
		return nil, fmt.Errorf("assist: cluster: %w", err)
	}
	var r clusterReply
	if err := llm.Decode(reply, &r); err != nil {
		return nil, fmt.Errorf("assist: cluster: %w", err)
	}

	byID := make(map[string]models.KnowledgeEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	used := make(map[string]bool)
	var out []models.OrphanCluster
	for _, item := range r.Clusters {
		title := strings.TrimSpace(item.Title)
		module := strings.Trim(strings.TrimSpace(item.Module), "/")
		if validation.Validate(title, validation.Required) != nil ||
			validation.Validate(module, validation.Required, validation.By(noSlash)) != nil {
			continue
		}
		c := models.OrphanCluster{Title: title, Module: module}
		for _, id := range item.EntryIDs {
			e, ok := byID[id]
			if !ok || used[id] {
				continue
			}
			used[id] = true
			c.Entries = append(c.Entries, e)
		}
		if len(c.Entries) > 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

// DraftDocument writes a new playbook for cluster. The returned path is the
// model's proposal and still has to be validated by the caller.
func (a *Assistant) DraftDocument(ctx context.Context, cluster models.OrphanCluster, knownIDs []string, seed int) (models.DraftDocument, error) {
	reply, err := a.client.Complete(ctx, draftSystem, draftPrompt(cluster, knownIDs, seed))
	if err != nil {
		return models.DraftDocument{}, fmt.Errorf("assist: draft document: %w", err)
	}
	var d models.DraftDocument
	if err := llm.Decode(reply, &d); err != nil {
		return models.DraftDocument{}, fmt.Errorf("assist: draft document: %w", err)
	}
	d.Path = strings.TrimSpace(d.Path)
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = cluster.Title
	}
	d.Module = strings.Trim(strings.TrimSpace(d.Module), "/")
	if d.Module == "" {
		d.Module = cluster.Module
	}
	if err := validation.ValidateStruct(&d,
		validation.Field(&d.Content, validation.Required, validation.By(notBlank)),
	); err != nil {
		return models.DraftDocument{}, invalid("draft document", err)
	}
	if !strings.HasSuffix(d.Content, "\n") {
		d.Content += "\n"
	}
	return d, nil
}

func invalid(op string, err error) error {
	return fmt.Errorf("assist: %s: %v: %w", op, err, apperr.ErrInvalidResponse)
}

func notBlank(value any) error {
	if s, _ := value.(string); strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "must not be blank")
	}
	return nil
}

func noSlash(value any) error {
	if s, _ := value.(string); strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return validation.NewError("validation_module", "must be a single path segment")
	}
	return nil
}

// cleanSection strips Markdown heading markers from a section name.
func cleanSection(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "#"))
}
