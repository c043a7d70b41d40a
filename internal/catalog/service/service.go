// Package service implements product search.
package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"crm_workflow_backend/internal/catalog/repository"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/sanitize"
)

const (
	DefaultLimit   = 50
	MaxLimit       = 200
	priceTolerance = 0.2
)

type FilterType string

const (
	FilterAll   FilterType = "all"
	FilterTag   FilterType = "tag"
	FilterPrice FilterType = "price"
	FilterName  FilterType = "name"
)

var (
	pricePattern   = regexp.MustCompile(`^[\d.,€$£¥]+$`)
	nonPriceDigits = regexp.MustCompile(`[^\d.,]`)
)

type Repository interface {
	ListActive(ctx context.Context, limit int) ([]repository.Product, error)
	ByName(ctx context.Context, term string, limit int) ([]repository.Product, error)
	ByTag(ctx context.Context, term string, limit int) ([]repository.Product, error)
	ByPriceRange(ctx context.Context, min, max float64, limit int) ([]repository.Product, error)
}

type Service struct {
	repo Repository
	log  *logger.Logger
}

func New(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

type SearchParams struct {
	Value string
	// Type is empty for auto-detection.
	Type  string
	Limit int
}

type SearchResult struct {
	Products      []repository.Product
	FilterApplied FilterType
}

// Search lists active products matching the filter. An empty value lists
// every active product.
func (s *Service) Search(ctx context.Context, params SearchParams) (SearchResult, error) {
	value := strings.TrimSpace(params.Value)
	limit := ClampLimit(params.Limit)

	filter := FilterAll
	if value != "" {
		switch t := FilterType(strings.ToLower(strings.TrimSpace(params.Type))); t {
		case "":
			filter = DetectFilterType(value)
		case FilterTag, FilterPrice, FilterName:
			filter = t
		default:
			return SearchResult{}, apperr.Validation("filter type must be tag, price or name")
		}
	}

	var (
		products []repository.Product
		err      error
	)
	switch filter {
	case FilterAll:
		products, err = s.repo.ListActive(ctx, limit)
	case FilterTag:
		products, err = s.repo.ByTag(ctx, value, limit)
	case FilterName:
		products, err = s.repo.ByName(ctx, value, limit)
	case FilterPrice:
		min, max, ok := PriceRange(value)
		if !ok {
			s.log.Warn("invalid price filter", "value", value)
			return SearchResult{Products: []repository.Product{}, FilterApplied: filter}, nil
		}
		products, err = s.repo.ByPriceRange(ctx, min, max, limit)
	}
	if err != nil {
		return SearchResult{}, apperr.Internal("search products", err)
	}

	for i := range products {
		products[i].Description = sanitize.StripHTML(products[i].Description)
		if products[i].Tags == nil {
			products[i].Tags = []string{}
		}
	}
	if products == nil {
		products = []repository.Product{}
	}
	return SearchResult{Products: products, FilterApplied: filter}, nil
}

// ClampLimit applies the default and keeps the limit within 1..200.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// DetectFilterType guesses the filter: numbers (with optional currency
// symbols) are prices, a single title-cased word is a tag, anything else a
// name.
func DetectFilterType(value string) FilterType {
	if pricePattern.MatchString(strings.ReplaceAll(value, " ", "")) {
		return FilterPrice
	}
	if len(strings.Fields(value)) == 1 && isTitle(value) {
		return FilterTag
	}
	return FilterName
}

// PriceRange parses a price and returns the ±20% window around it.
func PriceRange(value string) (float64, float64, bool) {
	raw := strings.ReplaceAll(nonPriceDigits.ReplaceAllString(value, ""), ",", ".")
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, 0, false
	}
	tolerance := price * priceTolerance
	return max(0, price-tolerance), price + tolerance, true
}

// isTitle reports whether every cased run starts with an upper-case letter
// followed only by lower-case letters, with at least one cased letter.
func isTitle(s string) bool {
	cased := false
	prevCased := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased = true
			cased = true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased = true
			cased = true
		default:
			prevCased = false
		}
	}
	return cased
}
