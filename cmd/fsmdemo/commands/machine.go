package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/persistence"
)

type orderState string

const (
	stateDraft     orderState = "draft"
	stateSubmitted orderState = "submitted"
	stateApproved  orderState = "approved"
	stateRejected  orderState = "rejected"
	stateShipped   orderState = "shipped"
	stateDelivered orderState = "delivered"
	stateCancelled orderState = "cancelled"
)

type orderEvent string

const (
	eventSubmit  orderEvent = "submit"
	eventApprove orderEvent = "approve"
	eventReject  orderEvent = "reject"
	eventShip    orderEvent = "ship"
	eventDeliver orderEvent = "deliver"
	eventCancel  orderEvent = "cancel"
)

const machineName = "order"

var (
	orderStates = []orderState{ //nolint:gochecknoglobals
		stateDraft, stateSubmitted, stateApproved, stateRejected,
		stateShipped, stateDelivered, stateCancelled,
	}
	orderEvents = []orderEvent{ //nolint:gochecknoglobals
		eventSubmit, eventApprove, eventReject, eventShip, eventDeliver, eventCancel,
	}
)

// order is the business data the guards look at.
type order struct {
	total int
	limit int
}

func (o order) withinLimit(context.Context, statemachine.Transition[orderState, orderEvent]) (bool, error) {
	return o.total > 0 && o.total <= o.limit, nil
}

func converter() persistence.Converter[orderState, orderEvent] {
	return persistence.LookupConverter(orderStates, orderEvents)
}

func newOrderBuilder(o order, out io.Writer) *statemachine.Builder[orderState, orderEvent] {
	announce := func(_ context.Context, t statemachine.Transition[orderState, orderEvent]) error {
		_, err := fmt.Fprintf(out, "  %s --%s--> %s\n", t.From, t.Reason, t.To)

		return err
	}

	notify := func(_ context.Context, _ statemachine.Transition[orderState, orderEvent]) error {
		_, err := fmt.Fprintln(out, "  customer notified: order is on its way")

		return err
	}

	return statemachine.NewBuilder[orderState, orderEvent](machineName, stateDraft).
		In(stateDraft).
		On(eventSubmit).GoTo(stateSubmitted).
		On(eventCancel).GoTo(stateCancelled).
		In(stateSubmitted).
		On(eventApprove).If(o.withinLimit).GoTo(stateApproved).
		On(eventReject).GoTo(stateRejected).
		On(eventCancel).GoTo(stateCancelled).
		In(stateApproved).
		On(eventShip).GoTo(stateShipped).
		On(eventCancel).GoTo(stateCancelled).
		In(stateShipped).
		On(eventDeliver).GoTo(stateDelivered).
		OnEnter("notify-customer", notify).
		In(stateDelivered).
		In(stateRejected).
		In(stateCancelled).
		Done().
		OnEnterAny("announce", announce).
		Domain(orderStates...).
		WithOptions(statemachine.WithLogger(statemachine.NewDefaultLogger()))
}
