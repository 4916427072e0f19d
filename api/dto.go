/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DATES:
  Monetary amounts cross the wire as decimal strings ("33.33"), never
  floats. Dates are YYYY-MM-DD.

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - budget/types.go: The domain model behind them
*/
package api

import "github.com/spendsend/budget-engine/budget"

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CreatePeriodRequest is the request to open a new pay period.
type CreatePeriodRequest struct {
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	Income      string              `json:"income"`
	Allocations []AllocationRequest `json:"allocations"`
}

// AllocationRequest is one fixed-cost envelope in a new period.
type AllocationRequest struct {
	Category  string `json:"category"`
	Allocated string `json:"allocated"`
}

// PeriodDTO represents a pay period in API responses.
type PeriodDTO struct {
	ID                string `json:"id"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	Income            string `json:"income"`
	FixedCostTotal    string `json:"fixed_cost_total"`
	DiscretionaryPool string `json:"discretionary_pool"`
	PerDiemRate       string `json:"per_diem_rate"`
	DaysUntilPayday   int    `json:"days_until_payday"`
	Active            bool   `json:"active"`
}

// PostTransactionRequest is a classified transaction from a client.
type PostTransactionRequest struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	IsFixedCost bool   `json:"is_fixed_cost"`
	Description string `json:"description,omitempty"`
	Merchant    string `json:"merchant,omitempty"`
	Date        string `json:"date,omitempty"`
}

// TransactionDTO represents a recorded transaction.
type TransactionDTO struct {
	ID          string `json:"id"`
	PeriodID    string `json:"period_id"`
	CategoryID  string `json:"category_id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	IsFixedCost bool   `json:"is_fixed_cost"`
	Description string `json:"description,omitempty"`
	Merchant    string `json:"merchant,omitempty"`
	Date        string `json:"date"`
}

// StatusDTO is the "where do I stand today" response.
type StatusDTO struct {
	PerDiemRate       string `json:"per_diem_rate"`
	RemainingToday    string `json:"remaining_today"`
	SpentToday        string `json:"spent_today"`
	DaysUntilPayday   int    `json:"days_until_payday"`
	ProjectedTomorrow string `json:"projected_tomorrow"`
}

// LedgerEntryDTO is one budget day in API responses.
type LedgerEntryDTO struct {
	Date       string `json:"date"`
	PerDiem    string `json:"per_diem"`
	Remaining  string `json:"remaining"`
	SpentToday string `json:"spent_today"`
	Rollover   string `json:"rollover"`
}

// AllocationDTO is a fixed-cost envelope with its running spend.
type AllocationDTO struct {
	Category  string `json:"category"`
	Allocated string `json:"allocated"`
	Spent     string `json:"spent"`
}

// CategoryTotalDTO is per-category spending within a period.
type CategoryTotalDTO struct {
	Name        string `json:"name"`
	IsFixedCost bool   `json:"is_fixed_cost"`
	Total       string `json:"total"`
	Count       int    `json:"count"`
}

// SummaryDTO is the full period report.
type SummaryDTO struct {
	Income                 string             `json:"income"`
	FixedAllocated         string             `json:"fixed_allocated"`
	FixedSpent             string             `json:"fixed_spent"`
	Allocations            []AllocationDTO    `json:"allocations"`
	FixedBreakdown         []CategoryTotalDTO `json:"fixed_breakdown"`
	DiscretionarySpent     string             `json:"discretionary_spent"`
	DiscretionaryBreakdown []CategoryTotalDTO `json:"discretionary_breakdown"`
	PerDiemRate            string             `json:"per_diem_rate"`
	RemainingToday         string             `json:"remaining_today"`
	DaysUntilPayday        int                `json:"days_until_payday"`
	DaysUnder              int                `json:"days_under"`
	DaysOver               int                `json:"days_over"`
	DaysOnTarget           int                `json:"days_on_target"`
}

// CategoryDTO represents a spending category.
type CategoryDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsFixedCost bool   `json:"is_fixed_cost"`
	IsDefault   bool   `json:"is_default"`
}

// SettingRequest sets one preference value.
type SettingRequest struct {
	Value string `json:"value"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPeriodDTO(p budget.PayPeriod) PeriodDTO {
	return PeriodDTO{
		ID:                string(p.ID),
		StartDate:         p.StartDate.String(),
		EndDate:           p.EndDate.String(),
		Income:            p.Income.String(),
		FixedCostTotal:    p.FixedCostTotal.String(),
		DiscretionaryPool: p.DiscretionaryPool.String(),
		PerDiemRate:       p.PerDiemRate.String(),
		DaysUntilPayday:   p.DaysUntilPayday,
		Active:            p.Active,
	}
}

func toTransactionDTO(tx budget.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		PeriodID:    string(tx.PayPeriodID),
		CategoryID:  string(tx.CategoryID),
		Type:        string(tx.Type),
		Amount:      tx.Amount.String(),
		IsFixedCost: tx.IsFixedCost,
		Description: tx.Description,
		Merchant:    tx.Merchant,
		Date:        tx.Date.String(),
	}
}

func toEntryDTO(e budget.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		Date:       e.Date.String(),
		PerDiem:    e.PerDiem.String(),
		Remaining:  e.Remaining.String(),
		SpentToday: e.SpentToday.String(),
		Rollover:   e.Rollover.String(),
	}
}

func toCategoryTotalDTOs(totals []budget.CategoryTotal) []CategoryTotalDTO {
	out := make([]CategoryTotalDTO, 0, len(totals))
	for _, t := range totals {
		out = append(out, CategoryTotalDTO{
			Name:        t.Name,
			IsFixedCost: t.IsFixedCost,
			Total:       t.Total.String(),
			Count:       t.Count,
		})
	}
	return out
}

func toSummaryDTO(s budget.PeriodSummary) SummaryDTO {
	allocs := make([]AllocationDTO, 0, len(s.Allocations))
	for _, a := range s.Allocations {
		allocs = append(allocs, AllocationDTO{
			Category:  a.Category,
			Allocated: a.Allocated.String(),
			Spent:     a.Spent.String(),
		})
	}
	return SummaryDTO{
		Income:                 s.Income.String(),
		FixedAllocated:         s.FixedAllocated.String(),
		FixedSpent:             s.FixedSpent.String(),
		Allocations:            allocs,
		FixedBreakdown:         toCategoryTotalDTOs(s.FixedBreakdown),
		DiscretionarySpent:     s.DiscretionarySpent.String(),
		DiscretionaryBreakdown: toCategoryTotalDTOs(s.DiscretionaryBreakdown),
		PerDiemRate:            s.PerDiemRate.String(),
		RemainingToday:         s.RemainingToday.String(),
		DaysUntilPayday:        s.DaysUntilPayday,
		DaysUnder:              s.Days.Under,
		DaysOver:               s.Days.Over,
		DaysOnTarget:           s.Days.OnTarget,
	}
}
