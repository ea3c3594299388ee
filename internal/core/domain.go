package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	Goods     Category = "GOODS"
	Event     Category = "EVENT"
	Streaming Category = "STREAMING"
	Game      Category = "GAME"
	Book      Category = "BOOK"
	Food      Category = "FOOD"
	Etc       Category = "ETC"
)

const (
	MinRating Rating = 1
	MaxRating Rating = 5

	// PerfectRating is the satisfaction level at which an amount is masked.
	PerfectRating Rating = MaxRating

	// Unrated is the zero value of a rating that has not been selected yet.
	Unrated Rating = 0
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500

	dateLayout = "2006-01-02"
)

type (
	Category string

	// Rating is a satisfaction score in [MinRating, MaxRating].
	Rating int

	Date struct {
		time.Time
	}

	// Expense is a record as served by the remote expense API.
	Expense struct {
		ID           int64
		Title        string
		Category     Category
		Amount       int64
		Rating       Rating
		PurchaseDate Date
		Description  string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// ExpenseInput is the payload of the create and update forms.
	ExpenseInput struct {
		Title        string
		Amount       int64
		Category     Category
		Rating       Rating
		PurchaseDate Date
		Description  string
	}

	categoryInfo struct {
		label string
		emoji string
	}
)

var categories = []Category{Goods, Event, Streaming, Game, Book, Food, Etc}

var categoryTable = map[Category]categoryInfo{
	Goods:     {label: "굿즈", emoji: "🎁"},
	Event:     {label: "이벤트/콘서트", emoji: "🎫"},
	Streaming: {label: "스트리밍", emoji: "📺"},
	Game:      {label: "게임", emoji: "🎮"},
	Book:      {label: "책/만화", emoji: "📚"},
	Food:      {label: "덕질 음식", emoji: "🍜"},
	Etc:       {label: "기타", emoji: "💰"},
}

// Categories returns all categories in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory accepts the wire name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

// Label returns the human readable name, or the raw value for unknown categories.
func (c Category) Label() string {
	if info, ok := categoryTable[c]; ok {
		return info.label
	}
	return string(c)
}

func (c Category) Emoji() string {
	if info, ok := categoryTable[c]; ok {
		return info.emoji
	}
	return ""
}

func (r Rating) Valid() bool {
	return r >= MinRating && r <= MaxRating
}

// IsPerfect reports whether the rating triggers amount masking.
func (r Rating) IsPerfect() bool {
	return r == PerfectRating
}

// Stars renders the rating as filled and empty star glyphs.
func (r Rating) Stars() string {
	n := int(r)
	if n < 0 {
		n = 0
	}
	if n > int(MaxRating) {
		n = int(MaxRating)
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", int(MaxRating)-n)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingPurchaseDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// String returns the date in YYYY-MM-DD format, empty for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the record against the API contract. A record that fails
// here is a data-integrity problem, not a user error.
func (e Expense) Validate() error {
	if !e.Rating.Valid() {
		return &InvalidRecordError{ID: e.ID, Field: "satisfactionRating", Value: fmt.Sprint(int(e.Rating))}
	}
	if e.Amount < 0 {
		return &InvalidRecordError{ID: e.ID, Field: "amount", Value: fmt.Sprint(e.Amount)}
	}
	return nil
}

// Input returns the editable fields of the record.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{
		Title:        e.Title,
		Amount:       e.Amount,
		Category:     e.Category,
		Rating:       e.Rating,
		PurchaseDate: e.PurchaseDate,
		Description:  e.Description,
	}
}

// Validate checks a form submission. The unset rating is reported before the
// other field errors so the user is prompted to pick a rating first.
func (in ExpenseInput) Validate() error {
	if in.Rating == Unrated {
		return ErrUnsetRating
	}
	if !in.Rating.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRating, in.Rating)
	}
	if strings.TrimSpace(string(in.Category)) == "" {
		return ErrMissingCategory
	}
	if !in.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, in.Category)
	}
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(in.Title) == "" {
		return ErrEmptyTitle
	}
	if len([]rune(in.Title)) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if len([]rune(in.Description)) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := in.PurchaseDate.Validate(); err != nil {
		return err
	}
	return nil
}
