package transport

import (
	"crm_workflow_backend/internal/catalog/repository"
	"crm_workflow_backend/internal/catalog/service"
)

type SearchProductsRequest struct {
	Filter string `form:"filter" validate:"max=200"`
	Type   string `form:"type" validate:"omitempty,oneof=tag price name TAG PRICE NAME"`
	Limit  int    `form:"limit"`
}

type ProductResponse struct {
	Name         string   `json:"name"`
	ProductCode  string   `json:"productCode"`
	StandardRate float64  `json:"standardRate"`
	Tags         []string `json:"tags"`
	Description  string   `json:"description"`
	Disabled     bool     `json:"disabled"`
}

type SearchProductsResponse struct {
	Products      []ProductResponse `json:"products"`
	TotalFound    int               `json:"totalFound"`
	FilterApplied string            `json:"filterApplied"`
}

func ToSearchProductsResponse(res service.SearchResult) SearchProductsResponse {
	products := make([]ProductResponse, 0, len(res.Products))
	for _, p := range res.Products {
		products = append(products, toProductResponse(p))
	}
	return SearchProductsResponse{
		Products:      products,
		TotalFound:    len(products),
		FilterApplied: string(res.FilterApplied),
	}
}

func toProductResponse(p repository.Product) ProductResponse {
	return ProductResponse{
		Name:         p.Name,
		ProductCode:  p.Code,
		StandardRate: p.StandardRate,
		Tags:         p.Tags,
		Description:  p.Description,
		Disabled:     p.Disabled,
	}
}
