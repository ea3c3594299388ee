package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"wallet/internal/core"
)

// Action names what happened to an expense.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// ExpenseChangedMessage announces a successful mutation. Owner is the
// browser session that made it. Expense is omitted for deletions.
type ExpenseChangedMessage struct {
	ID        int64           `json:"id"`
	Owner     string          `json:"owner"`
	Action    Action          `json:"action"`
	Timestamp time.Time       `json:"timestamp"`
	Expense   *ExpensePayload `json:"expense,omitempty"`
}

type ExpensePayload struct {
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	Amount       int64     `json:"amount"`
	Rating       int       `json:"satisfactionRating"`
	PurchaseDate core.Date `json:"purchaseDate"`
	Description  string    `json:"description,omitempty"`
}

// NewExpenseChangedMessage builds a message for a created or updated record.
func NewExpenseChangedMessage(owner string, action Action, e core.Expense) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		ID:        e.ID,
		Owner:     owner,
		Action:    action,
		Timestamp: time.Now(),
		Expense: &ExpensePayload{
			Title:        e.Title,
			Category:     string(e.Category),
			Amount:       e.Amount,
			Rating:       int(e.Rating),
			PurchaseDate: e.PurchaseDate,
			Description:  e.Description,
		},
	}
}

func NewExpenseDeletedMessage(owner string, id int64) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		ID:        id,
		Owner:     owner,
		Action:    ActionDeleted,
		Timestamp: time.Now(),
	}
}

// Record rebuilds and validates the carried expense.
func (m *ExpenseChangedMessage) Record() (core.Expense, error) {
	if m.Expense == nil {
		return core.Expense{}, fmt.Errorf("%s message for %d carries no expense", m.Action, m.ID)
	}
	e := core.Expense{
		ID:           m.ID,
		Title:        m.Expense.Title,
		Category:     core.Category(m.Expense.Category),
		Amount:       m.Expense.Amount,
		Rating:       core.Rating(m.Expense.Rating),
		PurchaseDate: m.Expense.PurchaseDate,
		Description:  m.Expense.Description,
		UpdatedAt:    m.Timestamp,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes and checks a message body.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Action.Valid() {
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.Owner == "" {
		return nil, fmt.Errorf("message for %d has no owner", msg.ID)
	}
	return &msg, nil
}
