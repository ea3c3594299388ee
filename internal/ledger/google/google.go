// Package google writes ledger rows to a Google Sheet.
//
// Layout: row 1 is a header, every following row is one expense keyed by
// the owner and id in columns A and B.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"wallet/internal/core"
	"wallet/internal/ledger"
	"wallet/internal/log"
)

var header = []any{"Owner", "ID", "Date", "Title", "Category", "Rating", "Real amount", "Display amount", "Masked", "Updated at"}

const lastColumn = "J"

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type rowKey struct {
	owner string
	id    int64
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger

	mu         sync.Mutex
	index      map[rowKey]int
	indexValid bool
}

var (
	_ ledger.Writer = (*Client)(nil)
	_ ledger.Reader = (*Client)(nil)
)

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *log.Logger) *Client {
	if sheet == "" {
		sheet = "Wallet"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger.WithComponent(log.ComponentLedger),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (c *Client) Upsert(ctx context.Context, row ledger.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndex(ctx); err != nil {
		return err
	}

	vr := &gsheet.ValueRange{Values: [][]any{toValues(row)}}
	if n, ok := c.index[rowKey{row.Owner, row.ID}]; ok {
		rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, n, lastColumn, n)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			c.indexValid = false
			return fmt.Errorf("update row %d in sheet %s: %w", n, c.sheet, err)
		}
		return nil
	}

	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		c.indexValid = false
		return fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}
	if resp.Updates != nil {
		if n, ok := firstRow(resp.Updates.UpdatedRange); ok {
			c.index[rowKey{row.Owner, row.ID}] = n
			return nil
		}
	}
	c.indexValid = false
	return nil
}

// Delete blanks the row; blank rows are skipped when the index is rebuilt.
func (c *Client) Delete(ctx context.Context, owner string, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndex(ctx); err != nil {
		return err
	}
	k := rowKey{owner, id}
	n, ok := c.index[k]
	if !ok {
		return ledger.ErrRowNotFound
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, n, lastColumn, n)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		c.indexValid = false
		return fmt.Errorf("clear row %d in sheet %s: %w", n, c.sheet, err)
	}
	delete(c.index, k)
	return nil
}

// ReplaceAll rewrites the whole sheet with a header and rows.
func (c *Client) ReplaceAll(ctx context.Context, rows []ledger.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		c.indexValid = false
		return fmt.Errorf("clear sheet %s: %w", c.sheet, err)
	}

	values := make([][]any, 0, len(rows)+1)
	values = append(values, header)
	index := make(map[rowKey]int, len(rows))
	for i, r := range rows {
		values = append(values, toValues(r))
		index[rowKey{r.Owner, r.ID}] = i + 2
	}
	rng := fmt.Sprintf("%s!A1:%s%d", c.sheet, lastColumn, len(values))
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		c.indexValid = false
		return fmt.Errorf("write sheet %s: %w", c.sheet, err)
	}

	c.index = index
	c.indexValid = true
	c.logger.InfoContext(ctx, "Ledger sheet rewritten", log.FieldCount, len(rows))
	return nil
}

// Rows reads the sheet back, skipping the header and blank rows.
func (c *Client) Rows(ctx context.Context) ([]ledger.Row, error) {
	rng := fmt.Sprintf("%s!A2:%s", c.sheet, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", c.sheet, err)
	}
	out := make([]ledger.Row, 0, len(resp.Values))
	for _, vals := range resp.Values {
		r, ok := fromValues(vals)
		if !ok {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// loadIndex reads the key columns once and writes the header when the
// sheet is empty. Callers hold c.mu.
func (c *Client) loadIndex(ctx context.Context) error {
	if c.indexValid {
		return nil
	}
	rng := fmt.Sprintf("%s!A:B", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read keys of sheet %s: %w", c.sheet, err)
	}

	if len(resp.Values) == 0 {
		hdr := fmt.Sprintf("%s!A1:%s1", c.sheet, lastColumn)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, hdr, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header of sheet %s: %w", c.sheet, err)
		}
	}

	index := make(map[rowKey]int, len(resp.Values))
	for i, vals := range resp.Values {
		if i == 0 || len(vals) < 2 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(vals[1])), 10, 64)
		if err != nil {
			continue
		}
		index[rowKey{strings.TrimSpace(fmt.Sprint(vals[0])), id}] = i + 1
	}
	c.index = index
	c.indexValid = true
	return nil
}

func toValues(r ledger.Row) []any {
	return []any{
		r.Owner,
		r.ID,
		r.Date.String(),
		r.Title,
		string(r.Category),
		int(r.Rating),
		r.RealAmount,
		r.DisplayAmount,
		r.Masked,
		r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func fromValues(vals []any) (ledger.Row, bool) {
	get := func(i int) string {
		if i >= len(vals) {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(vals[i]))
	}
	id, err := strconv.ParseInt(get(1), 10, 64)
	if err != nil || get(0) == "" {
		return ledger.Row{}, false
	}
	r := ledger.Row{Owner: get(0), ID: id, Title: get(3)}
	r.Date, _ = core.ParseDate(get(2))
	r.Category = core.Category(get(4))
	rating, _ := strconv.Atoi(get(5))
	r.Rating = core.Rating(rating)
	r.RealAmount, _ = strconv.ParseInt(get(6), 10, 64)
	r.DisplayAmount, _ = strconv.ParseInt(get(7), 10, 64)
	r.Masked, _ = strconv.ParseBool(strings.ToLower(get(8)))
	r.UpdatedAt, _ = time.Parse(time.RFC3339, get(9))
	return r, true
}

// firstRow extracts the row number from an A1 range such as "Wallet!A7:J7".
func firstRow(a1 string) (int, bool) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	if i := strings.Index(a1, ":"); i >= 0 {
		a1 = a1[:i]
	}
	digits := strings.TrimLeftFunc(a1, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
