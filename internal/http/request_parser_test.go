package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wallet/internal/core"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"title": "점심", "amount": 12000, "category": "FOOD"}`
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := parser.Get("title"); got != "점심" {
		t.Errorf("Get('title') = %q, want '점심'", got)
	}
	if got := parser.Get("amount"); got != "12000" {
		t.Errorf("Get('amount') = %q, want '12000'", got)
	}
	if got := parser.Get("missing"); got != "" {
		t.Errorf("Get('missing') = %q, want empty string", got)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "title=coffee+beans&amount=4500"
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := parser.Get("title"); got != "coffee beans" {
		t.Errorf("Get('title') = %q, want 'coffee beans'", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"title":`))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() expected error for truncated JSON")
	}
	// A second call reports the same failure.
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() expected cached error")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  spaced  ", "spaced"},
		{"bell\x07char", "bellchar"},
		{"line\nbreak", "line\nbreak"},
		{"tab\there", "tab\there"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseExpenseForm(t *testing.T) {
	body := "title=%EC%A0%90%EC%8B%AC&amount=12%2C000&category=food&purchaseDate=2024-06-15&description=+team+"
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseExpenseForm(req)
	if err != nil {
		t.Fatalf("ParseExpenseForm() error = %v", err)
	}
	if form.Title != "점심" {
		t.Errorf("Title = %q, want 점심", form.Title)
	}
	if form.Description != "team" {
		t.Errorf("Description = %q, want trimmed 'team'", form.Description)
	}

	in := form.Input(core.Rating(4))
	if in.Category != core.Category("FOOD") {
		t.Errorf("Category = %q, want FOOD", in.Category)
	}
	if in.Amount != 12000 {
		t.Errorf("Amount = %d, want 12000", in.Amount)
	}
	if in.PurchaseDate.String() != "2024-06-15" {
		t.Errorf("PurchaseDate = %s, want 2024-06-15", in.PurchaseDate)
	}
	if in.Rating != 4 {
		t.Errorf("Rating = %d, want 4", in.Rating)
	}
	if err := in.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestExpenseFormInput_UnparsableValuesStayZero(t *testing.T) {
	form := ExpenseForm{Title: "x", Amount: "lots", Category: "FOOD", PurchaseDate: "yesterday"}

	in := form.Input(core.Rating(3))
	if in.Amount != 0 {
		t.Errorf("Amount = %d, want 0", in.Amount)
	}
	if !in.PurchaseDate.IsZero() {
		t.Errorf("PurchaseDate = %s, want zero", in.PurchaseDate)
	}
}

func TestFormFromExpense(t *testing.T) {
	date, err := core.ParseDate("2024-03-01")
	if err != nil {
		t.Fatal(err)
	}
	form := FormFromExpense(core.Expense{
		ID: 7, Title: "Taxi", Category: "TRANSPORT", Amount: 15300, Rating: 2, PurchaseDate: date,
	})
	if form.Amount != "15300" || form.Category != "TRANSPORT" || form.PurchaseDate != "2024-03-01" {
		t.Errorf("FormFromExpense() = %+v", form)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"12", 12, false},
		{"", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/expenses/x", nil)
			req.SetPathValue("id", tt.raw)

			got, err := parseID(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseSlot(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{"slot=0", 0},
		{"slot=4", 4},
		{"slot=+2", 2},
		{"slot=star", -1},
		{"", -1},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/ui/rating/click", strings.NewReader(tt.body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if got := parseSlot(req); got != tt.want {
			t.Errorf("parseSlot(%q) = %d, want %d", tt.body, got, tt.want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ui/events?v=17", nil)
	if v, ok := parseVersion(req); !ok || v != 17 {
		t.Errorf("parseVersion() = %d, %v, want 17, true", v, ok)
	}

	req = httptest.NewRequest(http.MethodGet, "/ui/events", nil)
	if _, ok := parseVersion(req); ok {
		t.Error("parseVersion() without v should report false")
	}
}
