package http

import (
	"context"
	"fmt"

	"wallet/internal/amqp"
	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/session"
)

// ConsumerName labels the server's own change queue in metrics.
const ConsumerName = "web"

// changed bumps the dashboard version of the acting session and announces
// the change. A failed publish is logged; the mutation already succeeded.
func (s *Server) changed(ctx context.Context, owner string, dash *session.DashboardView, action amqp.Action, e core.Expense) {
	dash.Invalidate()
	if s.publisher == nil {
		return
	}

	var msg *amqp.ExpenseChangedMessage
	if action == amqp.ActionDeleted {
		msg = amqp.NewExpenseDeletedMessage(owner, e.ID)
	} else {
		msg = amqp.NewExpenseChangedMessage(owner, action, e)
	}
	err := s.publisher.Publish(ctx, msg)
	s.metrics.ObservePublish(string(action), err)
	if err != nil {
		reqLog(ctx, log.ComponentAMQP).WarnContext(ctx, "Failed to publish expense change",
			log.FieldAction, string(action),
			log.FieldExpenseID, e.ID,
			log.FieldError, err.Error())
	}
}

// HandleExpenseChanged consumes the server's change queue. Every open
// dashboard of the owning browser reloads on its next poll, with reveal
// reset, and the stale snapshot is dropped.
func (s *Server) HandleExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) (err error) {
	defer func() { s.metrics.ObserveConsume(ConsumerName, err) }()

	if st, ok := s.sessions.Lookup(msg.Owner); ok {
		st.Dashboard.Invalidate()
	}
	if s.snapshots != nil {
		if err := s.snapshots.DropOwner(ctx, msg.Owner); err != nil {
			return fmt.Errorf("drop snapshot of session %s: %w", msg.Owner, err)
		}
	}
	s.logger.WithComponent(log.ComponentAMQP).DebugContext(ctx, "Expense change applied",
		log.FieldAction, string(msg.Action),
		log.FieldExpenseID, msg.ID,
		log.FieldSessionID, msg.Owner)
	return nil
}
