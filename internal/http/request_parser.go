package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"wallet/internal/core"
)

const maxBodyBytes = 64 << 10

var errMissingID = errors.New("missing expense id")

// RequestBodyParser reads a form-encoded or JSON body once. The form posts
// url-encoded data; scripted clients may post the API's JSON shape.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body as JSON when it looks like JSON, as a query
// string otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.Contains(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns the trimmed, sanitized value of key.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims s and drops control characters other than tab,
// newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// ExpenseForm keeps the submitted values as typed so a rejected form can
// be rendered again without losing input.
type ExpenseForm struct {
	Title        string
	Amount       string
	Category     string
	PurchaseDate string
	Description  string
}

// ParseExpenseForm reads the create/update form. The rating is not part of
// it: the server-side selector is the source of truth.
func ParseExpenseForm(r *http.Request) (ExpenseForm, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return ExpenseForm{}, fmt.Errorf("parse expense form: %w", err)
	}
	return ExpenseForm{
		Title:        p.Get("title"),
		Amount:       p.Get("amount"),
		Category:     p.Get("category"),
		PurchaseDate: p.Get("purchaseDate"),
		Description:  p.Get("description"),
	}, nil
}

// Input converts the form. Values that do not parse stay zero so that
// ExpenseInput.Validate names the problem.
func (f ExpenseForm) Input(r core.Rating) core.ExpenseInput {
	in := core.ExpenseInput{
		Title:       f.Title,
		Category:    core.Category(strings.ToUpper(f.Category)),
		Rating:      r,
		Description: f.Description,
	}
	if amount, err := core.ParseAmount(f.Amount); err == nil {
		in.Amount = amount
	}
	if d, err := core.ParseDate(f.PurchaseDate); err == nil {
		in.PurchaseDate = d
	}
	return in
}

// FormFromExpense pre-fills the edit form.
func FormFromExpense(e core.Expense) ExpenseForm {
	return ExpenseForm{
		Title:        e.Title,
		Amount:       strconv.FormatInt(e.Amount, 10),
		Category:     string(e.Category),
		PurchaseDate: e.PurchaseDate.String(),
		Description:  e.Description,
	}
}

// parseID reads the {id} path value.
func parseID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	if raw == "" {
		return 0, errMissingID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", raw)
	}
	return id, nil
}

// parseSlot reads the zero-based star index. Anything unparsable maps to
// -1, which the selector rejects as an invalid interaction.
func parseSlot(r *http.Request) int {
	if err := r.ParseForm(); err != nil {
		return -1
	}
	slot, err := strconv.Atoi(strings.TrimSpace(r.Form.Get("slot")))
	if err != nil {
		return -1
	}
	return slot
}

// parseVersion reads the ?v= counter of the change poller.
func parseVersion(r *http.Request) (uint64, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(r.URL.Query().Get("v")), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
