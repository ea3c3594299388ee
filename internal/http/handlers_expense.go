package http

import (
	"context"
	"errors"
	"net/http"

	"wallet/internal/amqp"
	"wallet/internal/apiclient"
	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/rating"
)

// formErrorTarget is the error box of the expense form.
const formErrorTarget = "#form-error"

type categoryOption struct {
	Value    string
	Label    string
	Emoji    string
	Selected bool
}

type formView struct {
	Edit       bool
	ID         int64
	Action     string
	Form       ExpenseForm
	Rating     rating.View
	Categories []categoryOption
}

func categoryOptions(selected string) []categoryOption {
	cats := core.Categories()
	out := make([]categoryOption, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryOption{
			Value:    string(c),
			Label:    c.Label(),
			Emoji:    c.Emoji(),
			Selected: string(c) == selected,
		})
	}
	return out
}

// handleNewForm opens an unset rating control. The purchase date defaults
// to today.
func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}
	view := st.Form.Open(0, core.Unrated)
	form := ExpenseForm{PurchaseDate: core.Today().String()}

	s.render(ctx, NewHTMXResponse(), "form.html", formView{
		Action:     "/expenses",
		Form:       form,
		Rating:     view,
		Categories: categoryOptions(""),
	}).Write(w)
}

// handleEditForm pre-fills the form and commits the stored rating.
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		NotFoundError("지출을 찾을 수 없습니다").Write(w)
		return
	}
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	e, err := s.api.Get(cctx, id)
	if err != nil {
		s.failure(ctx, log.OpRead, id, err).Write(w)
		return
	}

	view := st.Form.Open(e.ID, e.Rating)
	form := FormFromExpense(e)
	s.render(ctx, NewHTMXResponse(), "form.html", formView{
		Edit:       true,
		ID:         e.ID,
		Action:     "/expenses/" + formatID(e.ID),
		Form:       form,
		Rating:     view,
		Categories: categoryOptions(form.Category),
	}).Write(w)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, 0)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError("지출 번호가 올바르지 않습니다").Write(w)
		return
	}
	s.submit(w, r, id)
}

// submit validates the form against the session's committed rating and
// forwards it. Nothing reaches the API while the rating is unset.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, id int64) {
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}
	form, err := ParseExpenseForm(r)
	if err != nil {
		BadRequestError("요청 형식이 올바르지 않습니다").Write(w)
		return
	}

	committed, formID := st.Form.Committed()
	if formID != id {
		// another form was opened in this browser since
		committed = core.Unrated
	}
	in := form.Input(committed)
	if err := in.Validate(); err != nil {
		reason := validationReason(err)
		s.metrics.SubmitBlocked.WithLabelValues(reason).Inc()
		reqLog(ctx, log.ComponentHTTP).InfoContext(ctx, "Expense form rejected",
			log.FieldOperation, log.OpValidate,
			log.FieldErrorType, log.ErrorTypeValidation,
			"reason", reason,
			log.FieldExpenseID, id)
		UnprocessableEntityError(validationMessage(err)).Retarget(formErrorTarget).Write(w)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var (
		saved  core.Expense
		action = amqp.ActionCreated
		op     = log.OpCreate
	)
	if id == 0 {
		saved, err = s.api.Create(cctx, in)
	} else {
		action, op = amqp.ActionUpdated, log.OpUpdate
		saved, err = s.api.Update(cctx, id, in)
	}
	if err != nil {
		s.failure(ctx, op, id, err).Retarget(formErrorTarget).Write(w)
		return
	}

	st.Form.Close()
	log.NewStructuredLogger(reqLog(ctx, log.ComponentHTTP)).LogExpenseSaved(ctx, op,
		saved.ID, saved.Title, saved.Amount, string(saved.Category), int(saved.Rating))
	s.changed(ctx, st.ID, st.Dashboard, action, saved)

	if r.Header.Get("HX-Request") == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		Redirect("/").
		TriggerFormReset().
		TriggerExpensesChanged(string(action), saved.ID).
		TriggerSuccessNotification("저장되었습니다").
		Write(w)
}

// handleDelete removes the record. The empty body replaces the card; the
// trigger reloads list and statistics.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError("지출 번호가 올바르지 않습니다").Write(w)
		return
	}
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	if err := s.api.Delete(cctx, id); err != nil {
		s.failure(ctx, log.OpDelete, id, err).Write(w)
		return
	}

	reqLog(ctx, log.ComponentHTTP).InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id)
	s.changed(ctx, st.ID, st.Dashboard, amqp.ActionDeleted, core.Expense{ID: id})

	NewHTMXResponse().
		TriggerExpensesChanged(string(amqp.ActionDeleted), id).
		TriggerSuccessNotification("삭제되었습니다").
		Write(w)
}

// failure maps an API error to a fragment. Validation messages from the
// API are shown as sent.
func (s *Server) failure(ctx context.Context, op string, id int64, err error) *HTMXResponseBuilder {
	logger := reqLog(ctx, log.ComponentAPI)
	var apiErr *apiclient.APIError

	switch {
	case errors.Is(err, core.ErrNotFound):
		logger.InfoContext(ctx, "Expense not found",
			log.FieldOperation, op,
			log.FieldExpenseID, id,
			log.FieldErrorType, log.ErrorTypeNotFound)
		return NotFoundError("지출을 찾을 수 없습니다")
	case errors.Is(err, core.ErrInvalidRecord):
		msg, _ := s.describeLoadError(ctx, op, err)
		return BadGatewayError(msg)
	case errors.Is(err, core.ErrUnavailable):
		logger.WarnContext(ctx, "Expense API unavailable",
			log.FieldOperation, op,
			log.FieldExpenseID, id,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err.Error())
		return BadGatewayError("서버에 연결할 수 없습니다. 잠시 후 다시 시도해주세요")
	case errors.As(err, &apiErr):
		logger.WarnContext(ctx, "Expense API rejected the request",
			log.FieldOperation, op,
			log.FieldExpenseID, id,
			log.FieldRemoteStatus, apiErr.Status,
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldError, apiErr.Message)
		return UnprocessableEntityError(apiErr.Message)
	default:
		logger.ErrorContext(ctx, "Expense API call failed",
			log.FieldOperation, op,
			log.FieldExpenseID, id,
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldError, err.Error())
		return InternalServerError("오류가 발생했습니다")
	}
}

// validationReason is the metrics label of a rejected submit.
func validationReason(err error) string {
	switch {
	case errors.Is(err, core.ErrUnsetRating):
		return "unset_rating"
	case errors.Is(err, core.ErrInvalidRating):
		return "invalid_rating"
	case errors.Is(err, core.ErrMissingCategory), errors.Is(err, core.ErrUnknownCategory):
		return "category"
	case errors.Is(err, core.ErrInvalidAmount):
		return "amount"
	case errors.Is(err, core.ErrEmptyTitle), errors.Is(err, core.ErrTitleTooLong):
		return "title"
	case errors.Is(err, core.ErrDescriptionTooLong):
		return "description"
	case errors.Is(err, core.ErrMissingPurchaseDate):
		return "purchase_date"
	default:
		return "other"
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrUnsetRating), errors.Is(err, core.ErrInvalidRating):
		return "만족도를 선택해주세요"
	case errors.Is(err, core.ErrMissingCategory), errors.Is(err, core.ErrUnknownCategory):
		return "카테고리를 선택해주세요"
	case errors.Is(err, core.ErrInvalidAmount):
		return "금액은 양수여야 합니다"
	case errors.Is(err, core.ErrEmptyTitle):
		return "제목을 입력해주세요"
	case errors.Is(err, core.ErrTitleTooLong):
		return "제목은 100자를 넘을 수 없습니다"
	case errors.Is(err, core.ErrDescriptionTooLong):
		return "설명은 500자를 넘을 수 없습니다"
	case errors.Is(err, core.ErrMissingPurchaseDate):
		return "구매일을 입력해주세요"
	default:
		return "입력값을 확인해주세요"
	}
}
