package api

import (
	"log/slog"
	"net/http"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/catalog"
	"github.com/go-chi/chi/v5"
)

type CatalogHandlers struct {
	catalog *catalog.Catalog
	log     *slog.Logger
}

func NewCatalogHandlers(c *catalog.Catalog, log *slog.Logger) *CatalogHandlers {
	return &CatalogHandlers{catalog: c, log: log.With("component", "catalog-http")}
}

func (h *CatalogHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.catalog.List(), "Products retrieved successfully")
}

func (h *CatalogHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.catalog.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, h.log, apperr.Wrap(apperr.KindNotFound, catalog.ErrProductNotFound))
		return
	}
	respondData(w, http.StatusOK, p, "Product retrieved successfully")
}
