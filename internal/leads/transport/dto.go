package transport

import (
	"encoding/json"
	"time"

	"crm_workflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

type IntakeRequest struct {
	FirstName       string          `json:"firstName" validate:"required,max=140"`
	LastName        string          `json:"lastName" validate:"required,max=140"`
	Organization    string          `json:"organization" validate:"required,max=140"`
	Email           string          `json:"email" validate:"omitempty,email"`
	MobileNo        string          `json:"mobileNo" validate:"omitempty,phone_digits"`
	Phone           string          `json:"phone" validate:"omitempty,phone_digits"`
	Website         string          `json:"website" validate:"omitempty,max=255"`
	Source          string          `json:"source" validate:"omitempty,max=140"`
	LeadOwner       string          `json:"leadOwner" validate:"omitempty,max=140"`
	DeliveryDate    *Date           `json:"deliveryDate"`
	DeliveryAddress string          `json:"deliveryAddress" validate:"omitempty,max=500"`
	OrderDate       *Date           `json:"orderDate"`
	OrderDetails    json.RawMessage `json:"orderDetails"`
	ReferenceType   string          `json:"referenceType" validate:"omitempty,oneof=lead deal"`
	ReferenceID     *uuid.UUID      `json:"referenceId"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,max=140"`
}

type ProductLineRequest struct {
	ProductCode        string  `json:"productCode" validate:"omitempty,max=140"`
	ProductName        string  `json:"productName" validate:"required,max=255"`
	Qty                float64 `json:"qty" validate:"gte=0"`
	Rate               float64 `json:"rate" validate:"gte=0"`
	DiscountPercentage float64 `json:"discountPercentage" validate:"gte=0,lte=100"`
	DiscountAmount     float64 `json:"discountAmount" validate:"gte=0"`
}

type SetProductsRequest struct {
	Lines []ProductLineRequest `json:"lines" validate:"dive"`
}

type DealOverridesRequest struct {
	DealOwner           *string  `json:"dealOwner"`
	Website             *string  `json:"website"`
	Territory           *string  `json:"territory"`
	Industry            *string  `json:"industry"`
	AnnualRevenue       *float64 `json:"annualRevenue" validate:"omitempty,gte=0"`
	Source              *string  `json:"source"`
	ExpectedClosureDate *Date    `json:"expectedClosureDate"`
	DeliveryDate        *Date    `json:"deliveryDate"`
	DeliveryAddress     *string  `json:"deliveryAddress"`
	OrderDate           *Date    `json:"orderDate"`
	OrderNotes          *string  `json:"orderNotes"`
}

type ConvertRequest struct {
	ContactID      *uuid.UUID           `json:"contactId"`
	OrganizationID *uuid.UUID           `json:"organizationId"`
	Deal           DealOverridesRequest `json:"deal"`
}

type CreateStatusRequest struct {
	Entity   string `json:"entity" validate:"required,oneof=lead deal"`
	Name     string `json:"name" validate:"required,max=140"`
	Position int    `json:"position" validate:"gte=0"`
	Color    string `json:"color" validate:"omitempty,max=40"`
}

type LeadResponse struct {
	ID                  uuid.UUID       `json:"id"`
	Name                string          `json:"name"`
	OrderNumber         string          `json:"orderNumber"`
	FirstName           string          `json:"firstName"`
	LastName            string          `json:"lastName"`
	Email               string          `json:"email,omitempty"`
	MobileNo            string          `json:"mobileNo,omitempty"`
	Phone               string          `json:"phone,omitempty"`
	Organization        string          `json:"organization"`
	Website             string          `json:"website,omitempty"`
	Source              string          `json:"source,omitempty"`
	Status              string          `json:"status"`
	Converted           bool            `json:"converted"`
	LeadOwner           string          `json:"leadOwner,omitempty"`
	CommunicationStatus string          `json:"communicationStatus,omitempty"`
	DeliveryDate        *Date           `json:"deliveryDate,omitempty"`
	DeliveryAddress     string          `json:"deliveryAddress,omitempty"`
	OrderDate           *Date           `json:"orderDate,omitempty"`
	OrderDetails        json.RawMessage `json:"orderDetails,omitempty"`
	Total               float64         `json:"total"`
	NetTotal            float64         `json:"netTotal"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

type IntakeResponse struct {
	Lead    LeadResponse `json:"lead"`
	Existed bool         `json:"existed"`
}

type ProductLineResponse struct {
	ID                 uuid.UUID `json:"id"`
	Position           int       `json:"position"`
	ProductCode        string    `json:"productCode,omitempty"`
	ProductName        string    `json:"productName"`
	Qty                float64   `json:"qty"`
	Rate               float64   `json:"rate"`
	Amount             float64   `json:"amount"`
	DiscountPercentage float64   `json:"discountPercentage"`
	DiscountAmount     float64   `json:"discountAmount"`
	NetAmount          float64   `json:"netAmount"`
}

type ProductsResponse struct {
	Lines    []ProductLineResponse `json:"lines"`
	Total    float64               `json:"total"`
	NetTotal float64               `json:"netTotal"`
}

type StatusLogEntryResponse struct {
	ID         uuid.UUID `json:"id"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ChangedBy  string    `json:"changedBy,omitempty"`
	ChangedAt  time.Time `json:"changedAt"`
}

type StatusResponse struct {
	ID       uuid.UUID `json:"id"`
	Entity   string    `json:"entity"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
	Color    string    `json:"color,omitempty"`
}

func ToLeadResponse(l domain.Lead) LeadResponse {
	return LeadResponse{
		ID:                  l.ID,
		Name:                l.Name,
		OrderNumber:         domain.OrderNumber(l.Name),
		FirstName:           l.FirstName,
		LastName:            l.LastName,
		Email:               l.Email,
		MobileNo:            l.MobileNo,
		Phone:               l.Phone,
		Organization:        l.Organization,
		Website:             l.Website,
		Source:              l.Source,
		Status:              l.Status,
		Converted:           l.Converted,
		LeadOwner:           l.LeadOwner,
		CommunicationStatus: l.CommunicationStatus,
		DeliveryDate:        DateOf(l.DeliveryDate),
		DeliveryAddress:     l.DeliveryAddress,
		OrderDate:           DateOf(l.OrderDate),
		OrderDetails:        l.OrderDetails,
		Total:               l.Total,
		NetTotal:            l.NetTotal,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
}

func ToProductsResponse(lines []domain.ProductLine, totals domain.Totals) ProductsResponse {
	out := ProductsResponse{Lines: make([]ProductLineResponse, 0, len(lines)), Total: totals.Total, NetTotal: totals.NetTotal}
	for _, l := range lines {
		out.Lines = append(out.Lines, ProductLineResponse{
			ID:                 l.ID,
			Position:           l.Position,
			ProductCode:        l.ProductCode,
			ProductName:        l.ProductName,
			Qty:                l.Qty,
			Rate:               l.Rate,
			Amount:             l.Amount,
			DiscountPercentage: l.DiscountPercentage,
			DiscountAmount:     l.DiscountAmount,
			NetAmount:          l.NetAmount,
		})
	}
	return out
}

func (r ProductLineRequest) ToDomain() domain.ProductLine {
	return domain.ProductLine{
		ProductCode:        r.ProductCode,
		ProductName:        r.ProductName,
		Qty:                r.Qty,
		Rate:               r.Rate,
		DiscountPercentage: r.DiscountPercentage,
		DiscountAmount:     r.DiscountAmount,
	}
}

func ToStatusLogResponse(entries []domain.StatusLogEntry) []StatusLogEntryResponse {
	out := make([]StatusLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, StatusLogEntryResponse{
			ID:         e.ID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			ChangedBy:  e.ChangedBy,
			ChangedAt:  e.ChangedAt,
		})
	}
	return out
}

func ToStatusResponses(statuses []domain.Status) []StatusResponse {
	out := make([]StatusResponse, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, StatusResponse{ID: s.ID, Entity: string(s.Entity), Name: s.Name, Position: s.Position, Color: s.Color})
	}
	return out
}
