package pipeline

import (
	"sync"

	"github.com/stayguide/guide-cli/internal/model"
)

// Curation holds the preview-stage selection state. Duplicates are hard
// excluded: no operation can select one.
type Curation struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*model.Candidate
}

// NewCuration seeds curation state from annotated search results, keeping
// their order.
func NewCuration(candidates []model.Candidate) *Curation {
	c := &Curation{byID: make(map[string]*model.Candidate, len(candidates))}
	for i := range candidates {
		cand := candidates[i]
		if _, ok := c.byID[cand.ExternalID]; ok {
			continue
		}
		c.order = append(c.order, cand.ExternalID)
		c.byID[cand.ExternalID] = &cand
	}
	return c
}

// ToggleSelection flips a candidate's selection. Toggling a duplicate or an
// unknown id is a no-op.
func (c *Curation) ToggleSelection(externalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cand, ok := c.byID[externalID]
	if !ok || cand.IsDuplicate {
		return
	}
	cand.Selected = !cand.Selected
}

// SetCategoryOverride sets or clears ("" clears) the category override for a
// candidate. Unknown ids are ignored.
func (c *Curation) SetCategoryOverride(externalID string, tag model.CategoryTag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cand, ok := c.byID[externalID]; ok {
		cand.CategoryOverride = tag
	}
}

// SetPhotoIndex picks which photo to use for a candidate. Negative indexes
// and unknown ids are ignored; out-of-range indexes fall back at read time.
func (c *Curation) SetPhotoIndex(externalID string, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 {
		return
	}
	if cand, ok := c.byID[externalID]; ok {
		cand.PhotoIndex = index
	}
}

// SelectAll selects every non-duplicate candidate.
func (c *Curation) SelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cand := range c.byID {
		if !cand.IsDuplicate {
			cand.Selected = true
		}
	}
}

// DeselectAll clears every selection.
func (c *Curation) DeselectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cand := range c.byID {
		cand.Selected = false
	}
}

// SelectedNonDuplicates returns the selected candidates in preview order.
func (c *Curation) SelectedNonDuplicates() []model.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Candidate
	for _, id := range c.order {
		cand := c.byID[id]
		if cand.Selected && !cand.IsDuplicate {
			out = append(out, *cand)
		}
	}
	return out
}

// Candidates returns a snapshot of all candidates in preview order.
func (c *Curation) Candidates() []model.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Candidate, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.byID[id])
	}
	return out
}
