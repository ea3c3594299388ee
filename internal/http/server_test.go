package http

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet/internal/amqp"
	"wallet/internal/apiclient"
	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/session"
	"wallet/internal/storage"
)

type fakeAPI struct {
	mu sync.Mutex

	expenses map[int64]core.Expense
	stats    core.Statistics
	listErr  error
	statsErr error
	mutErr   error

	created []core.ExpenseInput
	updated map[int64]core.ExpenseInput
	deleted []int64
	nextID  int64
}

func newFakeAPI(expenses ...core.Expense) *fakeAPI {
	f := &fakeAPI{expenses: make(map[int64]core.Expense), updated: make(map[int64]core.ExpenseInput), nextID: 100}
	for _, e := range expenses {
		f.expenses[e.ID] = e
	}
	return f
}

func (f *fakeAPI) List(ctx context.Context) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]core.Expense, 0, len(f.expenses))
	for id := int64(1); id <= f.nextID; id++ {
		if e, ok := f.expenses[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAPI) Get(ctx context.Context, id int64) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (f *fakeAPI) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutErr != nil {
		return core.Expense{}, f.mutErr
	}
	f.nextID++
	f.created = append(f.created, in)
	e := expenseFrom(f.nextID, in)
	f.expenses[e.ID] = e
	return e, nil
}

func (f *fakeAPI) Update(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.expenses[id]; !ok {
		return core.Expense{}, core.ErrNotFound
	}
	f.updated[id] = in
	e := expenseFrom(id, in)
	f.expenses[id] = e
	return e, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.expenses[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.expenses, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) Statistics(ctx context.Context) (core.Statistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return core.Statistics{}, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeAPI) fail(list, stats error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr, f.statsErr = list, stats
}

func expenseFrom(id int64, in core.ExpenseInput) core.Expense {
	return core.Expense{
		ID:           id,
		Title:        in.Title,
		Category:     in.Category,
		Amount:       in.Amount,
		Rating:       in.Rating,
		PurchaseDate: in.PurchaseDate,
		Description:  in.Description,
	}
}

type fakeSnapshots struct {
	mu      sync.Mutex
	lists   map[string][]core.Expense
	stats   map[string]core.Statistics
	takenAt time.Time
	dropped []string
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{lists: make(map[string][]core.Expense), stats: make(map[string]core.Statistics)}
}

func (f *fakeSnapshots) SaveList(ctx context.Context, owner string, records []core.Expense, takenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[owner] = records
	f.takenAt = takenAt
	return nil
}

func (f *fakeSnapshots) LoadList(ctx context.Context, owner string) ([]core.Expense, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, ok := f.lists[owner]
	if !ok {
		return nil, time.Time{}, storage.ErrNoSnapshot
	}
	return records, f.takenAt, nil
}

func (f *fakeSnapshots) SaveStatistics(ctx context.Context, owner string, st core.Statistics, takenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[owner] = st
	return nil
}

func (f *fakeSnapshots) LoadStatistics(ctx context.Context, owner string) (core.Statistics, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stats[owner]
	if !ok {
		return core.Statistics{}, time.Time{}, storage.ErrNoSnapshot
	}
	return st, f.takenAt, nil
}

func (f *fakeSnapshots) DropOwner(ctx context.Context, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lists, owner)
	delete(f.stats, owner)
	f.dropped = append(f.dropped, owner)
	return nil
}

func (f *fakeSnapshots) Ping(ctx context.Context) error { return nil }

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ExpenseChangedMessage
}

func (p *fakePublisher) Publish(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) messages() []*amqp.ExpenseChangedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.ExpenseChangedMessage(nil), p.msgs...)
}

type fixture struct {
	srv       *Server
	api       *fakeAPI
	snapshots *fakeSnapshots
	publisher *fakePublisher
	sessions  *session.Store
	ts        *httptest.Server
	client    *http.Client
}

func newFixture(t *testing.T, api *fakeAPI) *fixture {
	t.Helper()

	sessions := session.NewStore(session.Config{
		Secret:   []byte("0123456789abcdef0123456789abcdef"),
		TTL:      time.Hour,
		MaxViews: 16,
	}, log.Discard())

	f := &fixture{
		api:       api,
		snapshots: newFakeSnapshots(),
		publisher: &fakePublisher{},
		sessions:  sessions,
	}
	srv, err := NewServer(":0", Deps{
		API:       api,
		Sessions:  sessions,
		Snapshots: f.snapshots,
		Publisher: f.publisher,
	})
	require.NoError(t, err)
	f.srv = srv

	f.ts = httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		f.ts.Close()
		srv.limiter.Stop()
		srv.pending.Wait()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

type response struct {
	status int
	header http.Header
	body   string
}

func (f *fixture) do(t *testing.T, method, path string, form url.Values, htmx bool) response {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, f.ts.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: string(b)}
}

func (f *fixture) get(t *testing.T, path string) response {
	t.Helper()
	return f.do(t, http.MethodGet, path, nil, true)
}

func (f *fixture) post(t *testing.T, path string, form url.Values) response {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	return f.do(t, http.MethodPost, path, form, true)
}

func slotForm(slot int) url.Values {
	return url.Values{"slot": {strconv.Itoa(slot)}}
}

func sampleExpenses() []core.Expense {
	return []core.Expense{
		{ID: 1, Title: "콘서트 티켓", Category: core.Event, Amount: 45000, Rating: 5, PurchaseDate: core.NewDate(2024, 6, 1)},
		{ID: 2, Title: "라멘", Category: core.Food, Amount: 12000, Rating: 3, PurchaseDate: core.NewDate(2024, 6, 2)},
	}
}

func sampleStats() core.Statistics {
	return core.Statistics{TotalAmount: 57000, DisplayAmount: 12000, SavedAmount: 45000, SatisfiedCount: 1, TotalCount: 2}
}

func TestDashboard_MasksPerfectRatingUntilRevealed(t *testing.T) {
	api := newFakeAPI(sampleExpenses()...)
	api.stats = sampleStats()
	f := newFixture(t, api)

	page := f.get(t, "/")
	require.Equal(t, http.StatusOK, page.status)
	assert.Contains(t, page.body, `class="expense-amount masked"`)
	assert.Contains(t, page.body, `class="expense-amount plain"`)
	assert.Contains(t, page.body, "12,000원")
	assert.Contains(t, page.body, "👁 진실의 눈")
	assert.NotContains(t, page.body, "평소엔")
	assert.Contains(t, page.body, "합계 12,000원")

	revealed := f.post(t, "/ui/expenses/reveal", nil)
	require.Equal(t, http.StatusOK, revealed.status)
	assert.Contains(t, revealed.body, "45,000원")
	assert.Contains(t, revealed.body, "평소엔 0원")
	assert.Contains(t, revealed.body, "🙈 다시 숨기기")
	assert.Contains(t, revealed.body, "합계 57,000원")
	assert.NotContains(t, revealed.body, `expense-amount masked`)

	hidden := f.post(t, "/ui/expenses/reveal", nil)
	assert.NotContains(t, hidden.body, "평소엔")

	f.post(t, "/ui/expenses/reveal", nil)
	reloaded := f.get(t, "/ui/expenses")
	require.Equal(t, http.StatusOK, reloaded.status)
	assert.NotContains(t, reloaded.body, "평소엔", "reloading the list hides every amount again")
	assert.Contains(t, reloaded.body, "👁 진실의 눈")
}

func TestDashboard_NoTruthEyeWithoutMaskedRows(t *testing.T) {
	api := newFakeAPI(sampleExpenses()[1])
	api.stats = core.Statistics{TotalAmount: 12000, DisplayAmount: 12000, TotalCount: 1}
	f := newFixture(t, api)

	page := f.get(t, "/ui/expenses")
	require.Equal(t, http.StatusOK, page.status)
	assert.NotContains(t, page.body, "truth-eye")
	assert.Contains(t, page.body, "합계 12,000원")
}

func TestDashboard_FigureRevealIsIndependent(t *testing.T) {
	api := newFakeAPI(sampleExpenses()...)
	api.stats = sampleStats()
	f := newFixture(t, api)

	page := f.get(t, "/")
	assert.Contains(t, page.body, `id="displayAmount" class="stat-value masked">12,000원`)
	assert.Contains(t, page.body, `id="savedAmount" class="stat-value">45,000원`)

	figure := f.post(t, "/ui/statistics/reveal", nil)
	require.Equal(t, http.StatusOK, figure.status)
	assert.Contains(t, figure.body, `id="displayAmount" class="stat-value">57,000원`)

	// The list toggle was not touched by the figure reveal.
	list := f.post(t, "/ui/expenses/reveal", nil)
	assert.Contains(t, list.body, "🙈 다시 숨기기")

	// A fresh page render hides the figure again.
	page = f.get(t, "/")
	assert.Contains(t, page.body, `class="stat-value masked">12,000원`)
}

func TestRating_GesturesDriveTheWidget(t *testing.T) {
	f := newFixture(t, newFakeAPI())

	form := f.get(t, "/expenses/new")
	require.Equal(t, http.StatusOK, form.status)
	assert.Contains(t, form.body, `aria-valuenow="0"`)
	assert.Contains(t, form.body, "별을 드래그하거나 클릭하세요")

	hover := f.post(t, "/ui/rating/hover", slotForm(2))
	assert.Contains(t, hover.body, "previewing")
	assert.Contains(t, hover.body, `aria-valuenow="0"`)
	assert.Equal(t, 3, strings.Count(hover.body, "★"))

	left := f.post(t, "/ui/rating/leave", nil)
	assert.NotContains(t, left.body, "previewing")
	assert.Equal(t, 0, strings.Count(left.body, "★"))

	f.post(t, "/ui/rating/engage", slotForm(0))
	dragged := f.post(t, "/ui/rating/hover", slotForm(3))
	assert.Contains(t, dragged.body, `aria-valuenow="4"`)
	released := f.post(t, "/ui/rating/release", nil)
	assert.Contains(t, released.body, `aria-valuenow="4"`)

	// Hover after release only previews.
	preview := f.post(t, "/ui/rating/hover", slotForm(0))
	assert.Contains(t, preview.body, `aria-valuenow="4"`)
	assert.Contains(t, preview.body, "previewing")

	perfect := f.post(t, "/ui/rating/click", slotForm(4))
	assert.Contains(t, perfect.body, `aria-valuenow="5"`)
	assert.Contains(t, perfect.body, "rating-text perfect")
	assert.Contains(t, perfect.body, "0원 처리됩니다")
}

func TestRating_FormResetClearsNewFormRating(t *testing.T) {
	f := newFixture(t, newFakeAPI())
	f.get(t, "/expenses/new")
	f.post(t, "/ui/rating/click", slotForm(3))

	resp := f.post(t, "/ui/rating/reset", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `aria-valuenow="0"`)

	blocked := f.post(t, "/expenses", url.Values{
		"title": {"x"}, "amount": {"1000"}, "category": {"ETC"}, "purchaseDate": {"2024-06-10"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, blocked.status)
	assert.Contains(t, blocked.body, "만족도를 선택해주세요")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.srv.metrics.RatingGestures.WithLabelValues("reset", "ok")))
}

func TestRating_FormResetRestoresStoredRating(t *testing.T) {
	f := newFixture(t, newFakeAPI(sampleExpenses()...))
	f.get(t, "/expenses/2/edit")
	f.post(t, "/ui/rating/click", slotForm(0))

	resp := f.post(t, "/ui/rating/reset", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `aria-valuenow="3"`)
}

func TestRating_InvalidSlotLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, newFakeAPI())
	f.get(t, "/expenses/new")
	f.post(t, "/ui/rating/click", slotForm(1))

	resp := f.post(t, "/ui/rating/click", url.Values{"slot": {"9"}})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `aria-valuenow="2"`)

	resp = f.post(t, "/ui/rating/engage", url.Values{"slot": {"-1"}})
	assert.Contains(t, resp.body, `aria-valuenow="2"`)

	resp = f.post(t, "/ui/rating/spin", slotForm(1))
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestSubmit_BlockedWhileRatingUnset(t *testing.T) {
	api := newFakeAPI()
	f := newFixture(t, api)
	f.get(t, "/expenses/new")

	resp := f.post(t, "/expenses", url.Values{
		"title":        {"앨범"},
		"amount":       {"22000"},
		"category":     {"GOODS"},
		"purchaseDate": {"2024-06-10"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "만족도를 선택해주세요")
	assert.Equal(t, "#form-error", resp.header.Get("HX-Retarget"))
	assert.Empty(t, api.created)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.srv.metrics.SubmitBlocked.WithLabelValues("unset_rating")))
}

func TestSubmit_RatingCheckedBeforeOtherFields(t *testing.T) {
	f := newFixture(t, newFakeAPI())
	f.get(t, "/expenses/new")

	resp := f.post(t, "/expenses", url.Values{"amount": {"-5"}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "만족도를 선택해주세요")

	f.post(t, "/ui/rating/click", slotForm(2))
	resp = f.post(t, "/expenses", url.Values{"title": {"x"}, "amount": {"-5"}, "category": {"ETC"}, "purchaseDate": {"2024-06-10"}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "금액은 양수여야 합니다")
}

func TestSubmit_CreateSendsCommittedRating(t *testing.T) {
	api := newFakeAPI()
	f := newFixture(t, api)
	f.get(t, "/expenses/new")
	f.post(t, "/ui/rating/click", slotForm(4))

	resp := f.post(t, "/expenses", url.Values{
		"title":        {"팬미팅"},
		"amount":       {"88,000"},
		"category":     {"event"},
		"purchaseDate": {"2024-06-10"},
	})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "/", resp.header.Get("HX-Redirect"))
	assert.Contains(t, resp.header.Get("HX-Trigger"), EventExpensesChanged)
	assert.Contains(t, resp.header.Get("HX-Trigger"), `"action":"created"`)
	assert.Contains(t, resp.header.Get("HX-Trigger"), EventFormReset)

	require.Len(t, api.created, 1)
	assert.Equal(t, core.Rating(5), api.created[0].Rating)
	assert.Equal(t, int64(88000), api.created[0].Amount)
	assert.Equal(t, core.Event, api.created[0].Category)

	msgs := f.publisher.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, amqp.ActionCreated, msgs[0].Action)
	assert.NotEmpty(t, msgs[0].Owner)

	// The selector was discarded with the successful submit.
	again := f.post(t, "/expenses", url.Values{"title": {"x"}, "amount": {"1"}, "category": {"ETC"}, "purchaseDate": {"2024-06-10"}})
	assert.Equal(t, http.StatusUnprocessableEntity, again.status)
}

func TestSubmit_PlainFormPostRedirects(t *testing.T) {
	f := newFixture(t, newFakeAPI())
	f.get(t, "/expenses/new")
	f.post(t, "/ui/rating/click", slotForm(0))

	resp := f.do(t, http.MethodPost, "/expenses", url.Values{
		"title": {"x"}, "amount": {"1000"}, "category": {"ETC"}, "purchaseDate": {"2024-06-10"},
	}, false)
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/", resp.header.Get("Location"))
}

func TestSubmit_APIUnavailable(t *testing.T) {
	api := newFakeAPI()
	api.mutErr = core.ErrUnavailable
	f := newFixture(t, api)
	f.get(t, "/expenses/new")
	f.post(t, "/ui/rating/click", slotForm(3))

	resp := f.post(t, "/expenses", url.Values{"title": {"x"}, "amount": {"1000"}, "category": {"ETC"}, "purchaseDate": {"2024-06-10"}})
	assert.Equal(t, http.StatusBadGateway, resp.status)
	assert.Contains(t, resp.body, "서버에 연결할 수 없습니다")
	assert.Equal(t, "#form-error", resp.header.Get("HX-Retarget"))
}

func TestSubmit_APIRejectionShownAsSent(t *testing.T) {
	api := newFakeAPI()
	api.mutErr = &apiclient.APIError{Status: http.StatusBadRequest, Message: "구매일은 미래일 수 없습니다"}
	f := newFixture(t, api)
	f.get(t, "/expenses/new")
	f.post(t, "/ui/rating/click", slotForm(3))

	resp := f.post(t, "/expenses", url.Values{"title": {"x"}, "amount": {"1000"}, "category": {"ETC"}, "purchaseDate": {"2099-01-01"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "구매일은 미래일 수 없습니다")
}

func TestEdit_CommitsStoredRating(t *testing.T) {
	api := newFakeAPI(core.Expense{ID: 7, Title: "굿즈", Category: core.Goods, Amount: 30000, Rating: 4, PurchaseDate: core.NewDate(2024, 5, 5)})
	f := newFixture(t, api)

	form := f.get(t, "/expenses/7/edit")
	require.Equal(t, http.StatusOK, form.status)
	assert.Contains(t, form.body, `aria-valuenow="4"`)
	assert.Contains(t, form.body, `value="굿즈"`)
	assert.Contains(t, form.body, "/expenses/7")

	resp := f.post(t, "/expenses/7", url.Values{"title": {"굿즈 세트"}, "amount": {"30000"}, "category": {"GOODS"}, "purchaseDate": {"2024-05-05"}})
	require.Equal(t, http.StatusOK, resp.status)
	require.Contains(t, api.updated, int64(7))
	assert.Equal(t, core.Rating(4), api.updated[7].Rating)
	assert.Equal(t, "굿즈 세트", api.updated[7].Title)

	missing := f.get(t, "/expenses/99/edit")
	assert.Equal(t, http.StatusNotFound, missing.status)
}

func TestEdit_OtherFormOpenedSinceTreatsRatingAsUnset(t *testing.T) {
	api := newFakeAPI(core.Expense{ID: 7, Title: "굿즈", Category: core.Goods, Amount: 30000, Rating: 4, PurchaseDate: core.NewDate(2024, 5, 5)})
	f := newFixture(t, api)

	f.get(t, "/expenses/7/edit")
	f.get(t, "/expenses/new")

	resp := f.post(t, "/expenses/7", url.Values{"title": {"굿즈"}, "amount": {"30000"}, "category": {"GOODS"}, "purchaseDate": {"2024-05-05"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Empty(t, api.updated)
}

func TestDelete_TriggersReload(t *testing.T) {
	api := newFakeAPI(sampleExpenses()...)
	f := newFixture(t, api)

	resp := f.do(t, http.MethodDelete, "/expenses/2", nil, true)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Empty(t, resp.body)
	assert.Contains(t, resp.header.Get("HX-Trigger"), EventExpensesChanged)
	assert.Contains(t, resp.header.Get("HX-Trigger"), `"action":"deleted"`)
	assert.Equal(t, []int64{2}, api.deleted)

	msgs := f.publisher.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, amqp.ActionDeleted, msgs[0].Action)
	assert.Equal(t, int64(2), msgs[0].ID)

	again := f.do(t, http.MethodDelete, "/expenses/2", nil, true)
	assert.Equal(t, http.StatusNotFound, again.status)

	bad := f.do(t, http.MethodDelete, "/expenses/abc", nil, true)
	assert.Equal(t, http.StatusBadRequest, bad.status)
}

func TestList_InvalidRecordRendersIntegrityError(t *testing.T) {
	api := newFakeAPI(sampleExpenses()...)
	f := newFixture(t, api)

	f.get(t, "/ui/expenses")
	api.fail(&core.InvalidRecordError{ID: 9, Field: "satisfactionRating", Value: "7"}, nil)

	resp := f.get(t, "/ui/expenses")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `class="error integrity"`)
	assert.Contains(t, resp.body, "데이터 무결성 오류: 지출 #9의 satisfactionRating 값(7)이 올바르지 않습니다")
	assert.Contains(t, resp.body, "라멘", "rows already on screen stay")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.srv.metrics.InvalidRecords))
}

func TestList_ServesSnapshotWhileAPIUnavailable(t *testing.T) {
	api := newFakeAPI(sampleExpenses()...)
	api.stats = sampleStats()
	f := newFixture(t, api)

	f.get(t, "/")
	f.srv.pending.Wait()

	api.fail(core.ErrUnavailable, core.ErrUnavailable)
	list := f.get(t, "/ui/expenses")
	require.Equal(t, http.StatusOK, list.status)
	assert.Contains(t, list.body, "기준 목록을 보여줍니다")
	assert.Contains(t, list.body, "콘서트 티켓")
	assert.Contains(t, list.body, `class="expense-amount masked"`, "snapshot rows are masked too")

	stats := f.get(t, "/ui/statistics")
	assert.Contains(t, stats.body, "저장된 통계를 보여줍니다")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.srv.metrics.SnapshotServed))
}

func TestList_FailedReloadHidesRevealedAmounts(t *testing.T) {
	api := newFakeAPI(sampleExpenses()...)
	f := newFixture(t, api)

	f.get(t, "/ui/expenses")
	revealed := f.post(t, "/ui/expenses/reveal", nil)
	require.Contains(t, revealed.body, "45,000원")

	api.fail(core.ErrUnavailable, nil)
	resp := f.get(t, "/ui/expenses")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "데이터를 불러올 수 없습니다")
	assert.Contains(t, resp.body, "콘서트 티켓", "rows already on screen stay")
	assert.NotContains(t, resp.body, "평소엔")
	assert.NotContains(t, resp.body, "45,000원")
	assert.Contains(t, resp.body, `class="expense-amount masked"`)
	assert.Contains(t, resp.body, "👁 진실의 눈")
}

func TestList_UnavailableWithoutSnapshot(t *testing.T) {
	api := newFakeAPI()
	api.fail(core.ErrUnavailable, core.ErrUnavailable)
	f := newFixture(t, api)

	resp := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "데이터를 불러올 수 없습니다")
	assert.NotContains(t, resp.body, "integrity")
}

func TestEvents_PollReportsChanges(t *testing.T) {
	api := newFakeAPI(sampleExpenses()...)
	f := newFixture(t, api)

	page := f.get(t, "/ui/expenses")
	assert.Contains(t, page.body, `/ui/events?v=0`)

	idle := f.get(t, "/ui/events?v=0")
	assert.Equal(t, http.StatusNoContent, idle.status)

	f.do(t, http.MethodDelete, "/expenses/1", nil, true)

	changed := f.get(t, "/ui/events?v=0")
	require.Equal(t, http.StatusOK, changed.status)
	assert.Contains(t, changed.body, `/ui/events?v=1`)
	assert.Contains(t, changed.header.Get("HX-Trigger"), `"action":"remote"`)

	first := f.get(t, "/ui/events")
	assert.Equal(t, http.StatusOK, first.status)
	assert.Empty(t, first.header.Get("HX-Trigger"))
}

func TestHandleExpenseChanged_InvalidatesOwner(t *testing.T) {
	api := newFakeAPI()
	f := newFixture(t, api)

	st, err := f.sessions.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	f.snapshots.lists[st.ID] = sampleExpenses()

	err = f.srv.HandleExpenseChanged(context.Background(), amqp.NewExpenseDeletedMessage(st.ID, 3))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Dashboard.Version())
	assert.NotContains(t, f.snapshots.lists, st.ID)

	// Unknown owners only drop their snapshot.
	err = f.srv.HandleExpenseChanged(context.Background(), amqp.NewExpenseDeletedMessage("gone", 3))
	require.NoError(t, err)
	assert.Contains(t, f.snapshots.dropped, "gone")
}

func TestProbes(t *testing.T) {
	api := newFakeAPI()
	f := newFixture(t, api)

	health := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, health.status)
	assert.Contains(t, health.body, `"status":"ok"`)

	ready := f.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, ready.status)
	assert.Contains(t, ready.body, `"snapshot":"ok"`)

	api.fail(nil, core.ErrUnavailable)
	notReady := f.get(t, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, notReady.status)
	assert.Contains(t, notReady.body, `"not_ready"`)

	m := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, m.status)
	assert.Contains(t, m.body, "wallet_")
}

func TestMiddleware_HeadersAndStatic(t *testing.T) {
	f := newFixture(t, newFakeAPI())

	resp := f.get(t, "/healthz")
	assert.Equal(t, "nosniff", resp.header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.header.Get("X-Request-ID"))

	static := f.get(t, "/static/rating.js")
	require.Equal(t, http.StatusOK, static.status)
	assert.Contains(t, static.header.Get("Cache-Control"), "max-age=3600")
	assert.Contains(t, static.body, "/ui/rating/")
}
