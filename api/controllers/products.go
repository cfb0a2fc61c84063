package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/api/responses"
	"github.com/Loxess-crl/carrito-compras/api/validators"
	productsvc "github.com/Loxess-crl/carrito-compras/internal/products"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/logger"
	"github.com/Loxess-crl/carrito-compras/pkg/pagination"
)

// Free-text filter terms are capped so an oversized q or category value
// cannot reach the LIKE query.
const maxFilterTermLen = 120

// ListProducts serves the public catalog with cursor pagination and filters.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := buildProductFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListProducts(r.Context(), productsvc.ListProductsInput{
			Filters: filters,
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// GetProduct returns one catalog entry by id.
func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "productId"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}
		productID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func buildProductFilters(r *http.Request) (productsvc.ProductListFilters, error) {
	var filters productsvc.ProductListFilters

	if category := validators.SanitizeString(r.URL.Query().Get("category"), maxFilterTermLen); category != "" {
		filters.Category = &category
	}
	if query := validators.SanitizeString(r.URL.Query().Get("q"), maxFilterTermLen); query != "" {
		filters.Query = query
	}
	if rawStore := strings.TrimSpace(r.URL.Query().Get("store_id")); rawStore != "" {
		storeID, err := uuid.Parse(rawStore)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
		}
		filters.StoreID = &storeID
	}
	if r.URL.Query().Has("price_min_cents") {
		minCents, err := validators.ParseQueryInt(r, "price_min_cents", 0, 0, int(^uint(0)>>1))
		if err != nil {
			return filters, err
		}
		filters.PriceMinCents = &minCents
	}
	if r.URL.Query().Has("price_max_cents") {
		maxCents, err := validators.ParseQueryInt(r, "price_max_cents", 0, 0, int(^uint(0)>>1))
		if err != nil {
			return filters, err
		}
		filters.PriceMaxCents = &maxCents
	}
	inStock, err := validators.ParseQueryBool(r, "in_stock")
	if err != nil {
		return filters, err
	}
	if inStock != nil {
		filters.InStockOnly = *inStock
	}

	return filters, nil
}
