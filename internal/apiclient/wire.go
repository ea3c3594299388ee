package apiclient

import (
	"encoding/json"
	"strings"
	"time"

	"wallet/internal/core"
)

// expenseJSON mirrors the API's expense response. displayAmount and
// isSatisfied are computed by the server and ignored on read.
type expenseJSON struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title,omitempty"`
	Amount             int64     `json:"amount"`
	DisplayAmount      *int64    `json:"displayAmount,omitempty"`
	Category           string    `json:"category"`
	CategoryEmoji      string    `json:"categoryEmoji,omitempty"`
	SatisfactionRating int       `json:"satisfactionRating"`
	IsSatisfied        *bool     `json:"isSatisfied,omitempty"`
	Description        string    `json:"description,omitempty"`
	PurchaseDate       core.Date `json:"purchaseDate"`
	CreatedAt          timestamp `json:"createdAt"`
	UpdatedAt          timestamp `json:"updatedAt"`
}

type expenseRequest struct {
	Title              string    `json:"title"`
	Amount             int64     `json:"amount"`
	Category           string    `json:"category"`
	SatisfactionRating int       `json:"satisfactionRating"`
	PurchaseDate       core.Date `json:"purchaseDate"`
	Description        string    `json:"description,omitempty"`
}

type statisticsJSON struct {
	TotalAmount    int64 `json:"totalAmount"`
	DisplayAmount  int64 `json:"displayAmount"`
	SavedAmount    int64 `json:"savedAmount"`
	SatisfiedCount int64 `json:"satisfiedCount"`
	TotalCount     int64 `json:"totalCount"`
}

type errorJSON struct {
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Timestamp timestamp `json:"timestamp"`
	Path      string    `json:"path"`
}

func (e expenseJSON) toCore() (core.Expense, error) {
	out := core.Expense{
		ID:           e.ID,
		Title:        e.Title,
		Category:     core.Category(strings.ToUpper(e.Category)),
		Amount:       e.Amount,
		Rating:       core.Rating(e.SatisfactionRating),
		PurchaseDate: e.PurchaseDate,
		Description:  e.Description,
		CreatedAt:    e.CreatedAt.Time,
		UpdatedAt:    e.UpdatedAt.Time,
	}
	if err := out.Validate(); err != nil {
		return core.Expense{}, err
	}
	return out, nil
}

func newExpenseRequest(in core.ExpenseInput) expenseRequest {
	return expenseRequest{
		Title:              strings.TrimSpace(in.Title),
		Amount:             in.Amount,
		Category:           string(in.Category),
		SatisfactionRating: int(in.Rating),
		PurchaseDate:       in.PurchaseDate,
		Description:        strings.TrimSpace(in.Description),
	}
}

func (s statisticsJSON) toCore() core.Statistics {
	return core.Statistics{
		TotalAmount:    s.TotalAmount,
		DisplayAmount:  s.DisplayAmount,
		SavedAmount:    s.SavedAmount,
		SatisfiedCount: s.SatisfiedCount,
		TotalCount:     s.TotalCount,
	}.Normalize()
}

// timestamp accepts both zoned RFC 3339 values and the zone-less local
// date-times the API emits.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
