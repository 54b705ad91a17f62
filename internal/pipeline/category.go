package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/internal/store"
)

// CategoryResolver maps category tags to store category ids for one run,
// creating missing categories on first use. Results are cached so each tag
// resolves (and creates) at most once per run.
type CategoryResolver struct {
	inv     store.InventoryStore
	catalog model.Catalog
	ownerID string

	mu    sync.Mutex
	cache map[model.CategoryTag]string
}

// NewCategoryResolver creates a resolver scoped to one owner and run.
func NewCategoryResolver(inv store.InventoryStore, catalog model.Catalog, ownerID string) *CategoryResolver {
	return &CategoryResolver{
		inv:     inv,
		catalog: catalog,
		ownerID: ownerID,
		cache:   make(map[model.CategoryTag]string),
	}
}

// Resolve returns the store category id for a tag, looking it up by slug and
// creating it from the catalog when absent. Store failures are logged and
// swallowed: the item still imports, just without a category.
func (r *CategoryResolver) Resolve(ctx context.Context, tag model.CategoryTag) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.cache[tag]; ok {
		return id
	}

	id, err := r.inv.FindCategoryBySlug(ctx, r.ownerID, string(tag))
	if err != nil {
		zap.L().Warn("category lookup failed",
			zap.String("tag", string(tag)),
			zap.Error(err))
		r.cache[tag] = ""
		return ""
	}

	if id == "" {
		entry := r.catalog.Entry(tag)
		if entry == nil {
			// Not in the catalog: the entry imports uncategorized rather
			// than minting a category from an arbitrary tag.
			r.cache[tag] = ""
			return ""
		}
		id, err = r.inv.CreateCategory(ctx, r.ownerID, entry.Label, entry.Icon, string(tag))
		if err != nil {
			zap.L().Warn("category create failed",
				zap.String("tag", string(tag)),
				zap.Error(err))
			r.cache[tag] = ""
			return ""
		}
	}

	r.cache[tag] = id
	return id
}
