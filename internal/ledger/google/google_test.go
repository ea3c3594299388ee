package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"wallet/internal/core"
	"wallet/internal/ledger"
)

func TestNewMissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"}, nil)
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewMissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewUnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid", CredentialsFile: t.TempDir() + "/nope.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRowValuesRoundTrip(t *testing.T) {
	in := ledger.Row{
		Owner:         "sess-1",
		ID:            42,
		Date:          core.NewDate(2025, 3, 14),
		Title:         "acrylic stand",
		Category:      core.Goods,
		Rating:        5,
		RealAmount:    45000,
		DisplayAmount: 0,
		Masked:        true,
		UpdatedAt:     time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	vals := toValues(in)
	if len(vals) != len(header) {
		t.Fatalf("got %d columns, want %d", len(vals), len(header))
	}

	// Sheets hands cells back as strings.
	strs := make([]any, len(vals))
	for i, v := range vals {
		b, _ := json.Marshal(v)
		strs[i] = strings.Trim(string(b), `"`)
	}
	out, ok := fromValues(strs)
	if !ok {
		t.Fatal("row rejected")
	}
	if out.ID != in.ID || out.Owner != in.Owner || out.RealAmount != in.RealAmount ||
		!out.Masked || out.Rating != in.Rating || out.Date.String() != "2025-03-14" ||
		!out.UpdatedAt.Equal(in.UpdatedAt) {
		t.Errorf("round trip mismatch: %+v", out)
	}

	if _, ok := fromValues([]any{"", "", ""}); ok {
		t.Error("blank row should be skipped")
	}
}

func TestFirstRow(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Wallet!A7:J7", 7, true},
		{"'My sheet'!A12:J12", 12, true},
		{"A3", 3, true},
		{"Wallet!A:J", 0, false},
	}
	for _, tt := range tests {
		got, ok := firstRow(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("firstRow(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// fakeSheets answers the handful of values calls the client makes.
type fakeSheets struct {
	mu    sync.Mutex
	keys  [][]any
	calls []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sid/values/")
	f.calls = append(f.calls, r.Method+" "+rest)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(gsheet.ValueRange{Range: rest, Values: f.keys})
	case strings.HasSuffix(rest, ":append"):
		_ = json.NewEncoder(w).Encode(gsheet.AppendValuesResponse{
			Updates: &gsheet.UpdateValuesResponse{UpdatedRange: "Wallet!A4:J4"},
		})
	case strings.HasSuffix(rest, ":clear"):
		_ = json.NewEncoder(w).Encode(gsheet.ClearValuesResponse{ClearedRange: rest})
	default:
		_ = json.NewEncoder(w).Encode(gsheet.UpdateValuesResponse{UpdatedRange: rest})
	}
}

func newFakeClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return NewWithService(svc, "sid", "Wallet", nil)
}

func TestUpsertUpdatesKnownRowAndAppendsNew(t *testing.T) {
	f := &fakeSheets{keys: [][]any{
		{"Owner", "ID"},
		{"sess-1", "1"},
		{"sess-1", "2"},
	}}
	c := newFakeClient(t, f)
	ctx := context.Background()

	if err := c.Upsert(ctx, ledger.Row{Owner: "sess-1", ID: 2, Rating: 3}); err != nil {
		t.Fatalf("upsert existing: %v", err)
	}
	if err := c.Upsert(ctx, ledger.Row{Owner: "sess-1", ID: 9, Rating: 5}); err != nil {
		t.Fatalf("upsert new: %v", err)
	}
	if err := c.Delete(ctx, "sess-1", 9); err != nil {
		t.Fatalf("delete appended: %v", err)
	}
	if err := c.Delete(ctx, "sess-1", 99); err != ledger.ErrRowNotFound {
		t.Fatalf("delete unknown: got %v", err)
	}

	want := []string{
		"GET Wallet!A:B",
		"PUT Wallet!A3:J3",
		"POST Wallet!A:J:append",
		"POST Wallet!A4:J4:clear",
	}
	if strings.Join(f.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", f.calls, want)
	}
}

func TestUpsertWritesHeaderOnEmptySheet(t *testing.T) {
	f := &fakeSheets{}
	c := newFakeClient(t, f)

	if err := c.Upsert(context.Background(), ledger.Row{Owner: "o", ID: 1}); err != nil {
		t.Fatal(err)
	}
	if len(f.calls) < 2 || f.calls[1] != "PUT Wallet!A1:J1" {
		t.Errorf("header not written first: %v", f.calls)
	}
}

func TestReplaceAllRebuildsIndex(t *testing.T) {
	f := &fakeSheets{}
	c := newFakeClient(t, f)
	ctx := context.Background()

	rows := []ledger.Row{{Owner: "a", ID: 1}, {Owner: "b", ID: 2}}
	if err := c.ReplaceAll(ctx, rows); err != nil {
		t.Fatal(err)
	}
	if err := c.Upsert(ctx, ledger.Row{Owner: "b", ID: 2}); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"POST Wallet!A:J:clear",
		"PUT Wallet!A1:J3",
		"PUT Wallet!A3:J3",
	}
	if strings.Join(f.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", f.calls, want)
	}
}
