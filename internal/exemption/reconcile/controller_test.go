package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vatguard/internal/exemption/decision"
	"vatguard/internal/exemption/events"
	eventmocks "vatguard/internal/exemption/events/mocks"
	"vatguard/internal/exemption/identifier"
	"vatguard/internal/exemption/metrics"
	"vatguard/internal/exemption/state"
	statemocks "vatguard/internal/exemption/state/mocks"
	dErrors "vatguard/pkg/domain-errors"
)

type liveFlag struct {
	exempt bool
	sets   int
}

func (l *liveFlag) IsExempt() bool { return l.exempt }

func (l *liveFlag) SetExempt(exempt bool) {
	l.exempt = exempt
	l.sets++
}

func ptr(s string) *string { return &s }

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func enabledSettings() Settings {
	return Settings{
		FeatureEnabled: true,
		HomeCountry:    "FR",
		PickupMethods:  []string{"local_pickup"},
	}
}

type ControllerSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	store     *state.MemoryStore
	records   *state.Records
	publisher *eventmocks.MockPublisher
	metrics   *metrics.Metrics
	settings  Settings
	c         *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.store = state.NewMemoryStore()
	s.records = state.NewRecords(s.store)
	s.publisher = eventmocks.NewMockPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.settings = enabledSettings()
	s.c = s.newController(s.store)
}

func (s *ControllerSuite) newController(store state.Store) *Controller {
	return New(identifier.NewValidator(), store, StaticSettings(s.settings),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithPublisher(s.publisher),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func (s *ControllerSuite) withSettings(mutate func(*Settings)) {
	mutate(&s.settings)
	s.c = s.newController(s.store)
}

func (s *ControllerSuite) TestEvaluate() {
	s.Run("cross-border identifier is exempt", func() {
		eval := s.c.Evaluate(s.ctx, Input{Identifier: "DE123456789", BillingCountry: "DE", ShippingCountry: "DE"})
		s.True(eval.Verdict.Exempt)
		s.True(eval.Validation.Valid)
	})

	s.Run("domestic identifier is not exempt", func() {
		eval := s.c.Evaluate(s.ctx, Input{Identifier: "FR12345678901", BillingCountry: "FR", ShippingCountry: "FR"})
		s.False(eval.Verdict.Exempt)
		s.Equal(decision.RuleDomestic, eval.Verdict.Rule)
		s.Empty(eval.Verdict.Reasons)
	})

	s.Run("shipping mismatch names the shipping field", func() {
		eval := s.c.Evaluate(s.ctx, Input{Identifier: "DE123456789", BillingCountry: "DE", ShippingCountry: "IT"})
		s.False(eval.Verdict.Exempt)
		s.Require().Len(eval.Verdict.Reasons, 1)
		s.Equal(identifier.ErrorCountryMismatch, eval.Verdict.Reasons[0].Kind)
		s.Equal(decision.FieldShipping, eval.Verdict.Reasons[0].Field)
	})

	s.Run("required identifier missing", func() {
		s.withSettings(func(st *Settings) { st.IdentifierRequired = true })
		eval := s.c.Evaluate(s.ctx, Input{BillingCountry: "DE"})
		s.False(eval.Verdict.Exempt)
		s.Require().Len(eval.Verdict.Reasons, 1)
		s.Equal(identifier.ErrorRequired, eval.Verdict.Reasons[0].Kind)
	})

	s.Run("disabled feature still reports validation", func() {
		s.withSettings(func(st *Settings) { st.FeatureEnabled = false })
		eval := s.c.Evaluate(s.ctx, Input{Identifier: "DE1", BillingCountry: "DE"})
		s.False(eval.Verdict.Exempt)
		s.Equal(decision.RuleFeatureDisabled, eval.Verdict.Rule)
		s.Equal(identifier.ErrorInvalidFormat, eval.Validation.Reason)
		s.True(s.c.IsFeatureDisabled(s.ctx))
	})
}

func (s *ControllerSuite) TestReconcileSessionPath() {
	s.Run("submitted identifier corrects live state and is persisted", func() {
		live := &liveFlag{}
		res, err := s.c.Reconcile(s.ctx, Request{
			Trigger:         TriggerIdentifierChanged,
			SessionID:       "sess-1",
			Identifier:      ptr("de 123 456 789"),
			BillingCountry:  "DE",
			ShippingCountry: "DE",
			Live:            live,
		})
		s.Require().NoError(err)
		s.True(res.Verdict.Exempt)
		s.Equal(SourceSession, res.Source)
		s.True(res.Changed)
		s.True(live.exempt)
		s.Empty(res.Warnings)

		rec, err := s.records.Load(s.ctx, state.ScopeSession, "sess-1")
		s.Require().NoError(err)
		s.Equal(state.Record{Identifier: "DE123456789", Exempt: state.FlagYes}, rec)
	})

	s.Run("competing overwrite is corrected from session state", func() {
		live := &liveFlag{exempt: false}
		recalcs := 0
		res, err := s.c.Reconcile(s.ctx, Request{
			Trigger:         TriggerTotalsRecalculating,
			SessionID:       "sess-1",
			BillingCountry:  "DE",
			ShippingCountry: "DE",
			Live:            live,
			Recalculate: func(context.Context) error {
				recalcs++
				return nil
			},
		})
		s.Require().NoError(err)
		s.True(live.exempt)
		s.True(res.Changed)
		s.True(res.Recalculated)
		s.Equal(1, recalcs)
	})

	s.Run("agreeing live state is left alone", func() {
		live := &liveFlag{exempt: true}
		res, err := s.c.Reconcile(s.ctx, Request{
			Trigger:         TriggerPaymentCallback,
			SessionID:       "sess-1",
			BillingCountry:  "DE",
			ShippingCountry: "DE",
			Live:            live,
			Recalculate: func(context.Context) error {
				s.Fail("recalculation without a correction")
				return nil
			},
		})
		s.Require().NoError(err)
		s.False(res.Changed)
		s.Equal(0, live.sets)
	})

	s.Run("address change re-derives the verdict", func() {
		live := &liveFlag{exempt: true}
		res, err := s.c.Reconcile(s.ctx, Request{
			Trigger:         TriggerTotalsRecalculating,
			SessionID:       "sess-1",
			BillingCountry:  "DE",
			ShippingCountry: "IT",
			Live:            live,
		})
		s.Require().NoError(err)
		s.False(live.exempt)
		s.Equal(decision.RuleShippingMismatch, res.Verdict.Rule)

		rec, _ := s.records.Load(s.ctx, state.ScopeSession, "sess-1")
		s.Equal(state.FlagNo, rec.Exempt)
	})

	s.Run("customer profile pre-fills when the session is empty", func() {
		s.Require().NoError(s.records.SaveIdentifier(s.ctx, state.ScopeCustomer, "cust-9", "AT U12345678"))
		live := &liveFlag{}
		res, err := s.c.Reconcile(s.ctx, Request{
			Trigger:         TriggerIdentifierChanged,
			SessionID:       "sess-new",
			CustomerID:      "cust-9",
			BillingCountry:  "AT",
			ShippingCountry: "AT",
			Live:            live,
		})
		s.Require().NoError(err)
		s.True(res.Verdict.Exempt)
		s.True(live.exempt)
	})

	s.Run("pickup is never exempt", func() {
		live := &liveFlag{exempt: true}
		res, err := s.c.Reconcile(s.ctx, Request{
			Trigger:            TriggerTotalsRecalculating,
			Identifier:         ptr("DE123456789"),
			BillingCountry:     "DE",
			FulfillmentMethods: []string{"local_pickup:4"},
			Live:               live,
		})
		s.Require().NoError(err)
		s.False(live.exempt)
		s.Equal(decision.RulePickup, res.Verdict.Rule)
	})
}

func (s *ControllerSuite) TestFinalizeAndOrderAuthority() {
	s.Require().NoError(s.records.SaveIdentifier(s.ctx, state.ScopeCustomer, "cust-1", "DE999999999"))

	var published []events.Event
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt events.Event) error {
			published = append(published, evt)
			return nil
		}).Times(2)

	live := &liveFlag{}
	res, err := s.c.Reconcile(s.ctx, Request{
		Trigger:         TriggerOrderFinalizing,
		SessionID:       "sess-2",
		CustomerID:      "cust-1",
		OrderID:         "1001",
		Identifier:      ptr("DE123456789"),
		BillingCountry:  "DE",
		ShippingCountry: "DE",
		Live:            live,
	})
	s.Require().NoError(err)
	s.True(res.Verdict.Exempt)
	s.Empty(res.Warnings)

	order, err := s.records.Load(s.ctx, state.ScopeOrder, "1001")
	s.Require().NoError(err)
	s.Equal(state.Record{Identifier: "DE123456789", Exempt: state.FlagYes}, order)

	customer, err := s.records.Load(s.ctx, state.ScopeCustomer, "cust-1")
	s.Require().NoError(err)
	s.Equal("DE123456789", customer.Identifier)

	s.Require().Len(published, 2)
	s.Equal(events.TypeExemptionApplied, published[0].Type)
	s.Equal("1001", published[0].OrderID)
	s.Equal("DE", published[0].IdentifierCountry)
	s.True(published[0].Exempt)
	s.Equal(fixedNow, published[0].OccurredAt)
	s.Equal(events.TypeCustomerIdentifierUpdated, published[1].Type)
	s.Equal("DE999999999", published[1].PreviousIdentifier)

	s.Run("order record wins over a changed address", func() {
		live := &liveFlag{exempt: false}
		res, err := s.c.Reconcile(s.ctx, Request{
			Trigger:         TriggerOrderStatusChanged,
			OrderID:         "1001",
			BillingCountry:  "IT",
			ShippingCountry: "IT",
			Live:            live,
		})
		s.Require().NoError(err)
		s.Equal(SourceOrder, res.Source)
		s.Equal(decision.RuleRecorded, res.Verdict.Rule)
		s.True(live.exempt)
	})

	s.Run("explicit order no is re-asserted", func() {
		s.Require().NoError(s.records.SaveFlag(s.ctx, state.ScopeOrder, "1002", state.FlagNo))
		live := &liveFlag{exempt: true}
		res, err := s.c.Reconcile(s.ctx, Request{
			Trigger:         TriggerPaymentCallback,
			OrderID:         "1002",
			Identifier:      ptr("DE123456789"),
			BillingCountry:  "DE",
			ShippingCountry: "DE",
			Live:            live,
		})
		s.Require().NoError(err)
		s.Equal(SourceOrder, res.Source)
		s.False(live.exempt)
	})

	s.Run("override consults the order record", func() {
		s.True(s.c.Override(s.ctx, false, "1001"))
		s.False(s.c.Override(s.ctx, true, "1002"))
		s.True(s.c.Override(s.ctx, true, "unknown-order"))
		s.False(s.c.Override(s.ctx, false, ""))
		s.Equal(float64(2), testutil.ToFloat64(s.metrics.Overrides.WithLabelValues("order_record")))
	})
}

func (s *ControllerSuite) TestFinalizeWithUnchangedProfile() {
	s.Require().NoError(s.records.SaveIdentifier(s.ctx, state.ScopeCustomer, "cust-2", "DE123456789"))
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt events.Event) error {
			s.Equal(events.TypeExemptionApplied, evt.Type)
			return nil
		}).Times(1)

	_, err := s.c.Reconcile(s.ctx, Request{
		Trigger:         TriggerOrderFinalizing,
		CustomerID:      "cust-2",
		OrderID:         "2001",
		BillingCountry:  "DE",
		ShippingCountry: "DE",
		Live:            &liveFlag{},
	})
	s.Require().NoError(err)

	order, _ := s.records.Load(s.ctx, state.ScopeOrder, "2001")
	s.Equal(state.FlagYes, order.Exempt)
}

func (s *ControllerSuite) TestRecursionGuard() {
	s.Run("nested reconcile inside recalculation does not recalculate again", func() {
		live := &liveFlag{}
		recalcs := 0
		var req Request
		req = Request{
			Trigger:         TriggerIdentifierChanged,
			Identifier:      ptr("DE123456789"),
			BillingCountry:  "DE",
			ShippingCountry: "DE",
			Live:            live,
			Recalculate: func(ctx context.Context) error {
				recalcs++
				// a competing actor flips the flag during recalculation
				live.exempt = false
				nested := req
				nested.Trigger = TriggerTotalsRecalculating
				res, err := s.c.Reconcile(ctx, nested)
				s.Require().NoError(err)
				s.True(res.Changed)
				s.False(res.Recalculated)
				return nil
			},
		}

		res, err := s.c.Reconcile(s.ctx, req)
		s.Require().NoError(err)
		s.True(res.Recalculated)
		s.Equal(1, recalcs)
		s.True(live.exempt)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.SuppressedRecalculations))
	})

	s.Run("guard is released after a failing recalculation", func() {
		ctx := WithGuard(s.ctx)
		live := &liveFlag{}
		res, err := s.c.Reconcile(ctx, Request{
			Trigger:        TriggerIdentifierChanged,
			Identifier:     ptr("DE123456789"),
			BillingCountry: "DE",
			Live:           live,
			Recalculate:    func(context.Context) error { return errors.New("cart locked") },
		})
		s.Require().NoError(err)
		s.False(res.Recalculated)
		s.Require().Len(res.Warnings, 1)
		s.Contains(res.Warnings[0], "cart locked")
		s.False(InRecalculation(ctx))
	})

	s.Run("guard is released after a panicking recalculation", func() {
		ctx := WithGuard(s.ctx)
		func() {
			defer func() { _ = recover() }()
			_, _ = s.c.Reconcile(ctx, Request{
				Trigger:     TriggerIdentifierChanged,
				Identifier:  ptr("DE123456789"),
				Live:        &liveFlag{},
				Recalculate: func(context.Context) error { panic("host exploded") },
			})
		}()
		s.False(InRecalculation(ctx))

		recalcs := 0
		res, err := s.c.Reconcile(ctx, Request{
			Trigger:     TriggerIdentifierChanged,
			Identifier:  ptr("DE123456789"),
			Live:        &liveFlag{},
			Recalculate: func(context.Context) error { recalcs++; return nil },
		})
		s.Require().NoError(err)
		s.True(res.Recalculated)
		s.Equal(1, recalcs)
	})

	s.Run("host-marked nested context never recalculates", func() {
		res, err := s.c.Reconcile(Nested(s.ctx), Request{
			Trigger:     TriggerIdentifierChanged,
			Identifier:  ptr("DE123456789"),
			Live:        &liveFlag{},
			Recalculate: func(context.Context) error { s.Fail("recalculated"); return nil },
		})
		s.Require().NoError(err)
		s.True(res.Changed)
		s.False(res.Recalculated)
	})
}

func (s *ControllerSuite) TestPersistenceFailures() {
	store := statemocks.NewMockStore(s.ctrl)
	store.EXPECT().Read(gomock.Any(), gomock.Any(), gomock.Any()).Return("", false, nil).AnyTimes()
	store.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis: connection refused")).AnyTimes()
	c := s.newController(store)

	live := &liveFlag{}
	res, err := c.Reconcile(s.ctx, Request{
		Trigger:         TriggerOrderFinalizing,
		SessionID:       "sess-3",
		OrderID:         "3001",
		Identifier:      ptr("DE123456789"),
		BillingCountry:  "DE",
		ShippingCountry: "DE",
		Live:            live,
	})
	s.Require().NoError(err)
	s.True(live.exempt)
	s.True(res.Verdict.Exempt)
	s.NotEmpty(res.Warnings)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PersistenceFailures.WithLabelValues("order")))
}

func (s *ControllerSuite) TestOverrideReadFailurePassesThrough() {
	store := statemocks.NewMockStore(s.ctrl)
	store.EXPECT().Read(gomock.Any(), state.ScopeOrder, gomock.Any()).Return("", false, errors.New("timeout")).AnyTimes()
	c := s.newController(store)

	s.True(c.Override(s.ctx, true, "4001"))
	s.False(c.Override(s.ctx, false, "4001"))
}

func (s *ControllerSuite) TestFeatureDisabled() {
	s.withSettings(func(st *Settings) { st.FeatureEnabled = false })

	live := &liveFlag{exempt: true}
	res, err := s.c.Reconcile(s.ctx, Request{
		Trigger:         TriggerOrderFinalizing,
		SessionID:       "sess-4",
		OrderID:         "5001",
		Identifier:      ptr("DE123456789"),
		BillingCountry:  "DE",
		ShippingCountry: "DE",
		Live:            live,
	})
	s.Require().NoError(err)
	s.Equal(SourceDisabled, res.Source)
	s.False(live.exempt)

	order, _ := s.records.Load(s.ctx, state.ScopeOrder, "5001")
	s.True(order.Empty())
	session, _ := s.records.Load(s.ctx, state.ScopeSession, "sess-4")
	s.True(session.Empty())
}

func (s *ControllerSuite) TestRequestStart() {
	s.Run("skipped unless overriding competing extensions", func() {
		live := &liveFlag{exempt: true}
		res, err := s.c.Reconcile(s.ctx, Request{Trigger: TriggerRequestStart, Live: live})
		s.Require().NoError(err)
		s.Equal(SourceSkipped, res.Source)
		s.True(live.exempt)
	})

	s.Run("re-asserts the verdict when enabled", func() {
		s.withSettings(func(st *Settings) { st.OverrideCompetingExtensions = true })
		s.Require().NoError(s.records.SaveIdentifier(s.ctx, state.ScopeSession, "sess-5", "DE123456789"))

		live := &liveFlag{}
		res, err := s.c.Reconcile(s.ctx, Request{
			Trigger:        TriggerRequestStart,
			SessionID:      "sess-5",
			BillingCountry: "DE",
			Live:           live,
		})
		s.Require().NoError(err)
		s.Equal(SourceSession, res.Source)
		s.True(live.exempt)
	})
}

func (s *ControllerSuite) TestMalformedRequests() {
	_, err := s.c.Reconcile(s.ctx, Request{Trigger: TriggerIdentifierChanged})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.c.Reconcile(s.ctx, Request{Trigger: "cart_viewed", Live: &liveFlag{}})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ControllerSuite) TestEndSession() {
	s.Require().NoError(s.records.Save(s.ctx, state.ScopeSession, "sess-6", state.Record{Identifier: "DE123456789", Exempt: state.FlagYes}))

	s.Require().NoError(s.c.EndSession(s.ctx, "sess-6"))
	rec, err := s.records.Load(s.ctx, state.ScopeSession, "sess-6")
	s.Require().NoError(err)
	s.True(rec.Empty())

	err = s.c.EndSession(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ControllerSuite) TestClearedIdentifierStaysCleared() {
	s.Run("later triggers do not revive the previous session identifier", func() {
		live := &liveFlag{}
		req := Request{
			Trigger:         TriggerIdentifierChanged,
			SessionID:       "sess-clear",
			Identifier:      ptr("DE123456789"),
			BillingCountry:  "DE",
			ShippingCountry: "DE",
			Live:            live,
		}
		_, err := s.c.Reconcile(s.ctx, req)
		s.Require().NoError(err)
		s.True(live.exempt)

		req.Identifier = ptr("")
		res, err := s.c.Reconcile(s.ctx, req)
		s.Require().NoError(err)
		s.False(live.exempt)
		s.Equal(decision.RuleIdentifierAbsent, res.Verdict.Rule)

		for _, trigger := range []Trigger{TriggerTotalsRecalculating, TriggerPaymentCallback} {
			res, err = s.c.Reconcile(s.ctx, Request{
				Trigger:         trigger,
				SessionID:       "sess-clear",
				BillingCountry:  "DE",
				ShippingCountry: "DE",
				Live:            live,
			})
			s.Require().NoError(err)
			s.False(live.exempt, "trigger %s", trigger)
			s.False(res.Changed)
			s.Equal(decision.RuleIdentifierAbsent, res.Verdict.Rule)
		}

		rec, err := s.records.Load(s.ctx, state.ScopeSession, "sess-clear")
		s.Require().NoError(err)
		s.Equal(state.Record{Identifier: "", Exempt: state.FlagNo}, rec)
	})

	s.Run("profile pre-fill does not revive a cleared field", func() {
		s.Require().NoError(s.records.SaveIdentifier(s.ctx, state.ScopeCustomer, "cust-clear", "DE123456789"))
		live := &liveFlag{}
		req := Request{
			Trigger:         TriggerTotalsRecalculating,
			SessionID:       "sess-clear-2",
			CustomerID:      "cust-clear",
			BillingCountry:  "DE",
			ShippingCountry: "DE",
			Live:            live,
		}
		_, err := s.c.Reconcile(s.ctx, req)
		s.Require().NoError(err)
		s.True(live.exempt, "profile pre-fills an untouched session")

		cleared := req
		cleared.Trigger = TriggerIdentifierChanged
		cleared.Identifier = ptr("  ")
		_, err = s.c.Reconcile(s.ctx, cleared)
		s.Require().NoError(err)
		s.False(live.exempt)

		_, err = s.c.Reconcile(s.ctx, req)
		s.Require().NoError(err)
		s.False(live.exempt)

		finalizing := req
		finalizing.Trigger = TriggerOrderFinalizing
		finalizing.OrderID = "7001"
		_, err = s.c.Reconcile(s.ctx, finalizing)
		s.Require().NoError(err)
		s.False(live.exempt)

		order, err := s.records.Load(s.ctx, state.ScopeOrder, "7001")
		s.Require().NoError(err)
		s.True(order.Empty())
	})
}

func (s *ControllerSuite) TestReconcileIsIdempotent() {
	s.Run("session path", func() {
		live := &liveFlag{}
		req := Request{
			Trigger:         TriggerIdentifierChanged,
			SessionID:       "sess-idem",
			Identifier:      ptr("DE123456789"),
			BillingCountry:  "DE",
			ShippingCountry: "DE",
			Live:            live,
		}

		first, err := s.c.Reconcile(s.ctx, req)
		s.Require().NoError(err)
		afterFirst, err := s.records.Load(s.ctx, state.ScopeSession, "sess-idem")
		s.Require().NoError(err)

		second, err := s.c.Reconcile(s.ctx, req)
		s.Require().NoError(err)
		afterSecond, err := s.records.Load(s.ctx, state.ScopeSession, "sess-idem")
		s.Require().NoError(err)

		s.Equal(afterFirst, afterSecond)
		s.Equal(first.Verdict, second.Verdict)
		s.True(first.Changed)
		s.False(second.Changed)
		s.Equal(1, live.sets)
	})

	s.Run("order path", func() {
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, evt events.Event) error {
				s.Equal(events.TypeExemptionApplied, evt.Type)
				return nil
			}).Times(1)

		live := &liveFlag{}
		req := Request{
			Trigger:         TriggerOrderFinalizing,
			SessionID:       "sess-idem-order",
			OrderID:         "6001",
			Identifier:      ptr("DE123456789"),
			BillingCountry:  "DE",
			ShippingCountry: "DE",
			Live:            live,
		}

		first, err := s.c.Reconcile(s.ctx, req)
		s.Require().NoError(err)
		orderFirst, err := s.records.Load(s.ctx, state.ScopeOrder, "6001")
		s.Require().NoError(err)

		second, err := s.c.Reconcile(s.ctx, req)
		s.Require().NoError(err)
		orderSecond, err := s.records.Load(s.ctx, state.ScopeOrder, "6001")
		s.Require().NoError(err)

		s.Equal(state.Record{Identifier: "DE123456789", Exempt: state.FlagYes}, orderFirst)
		s.Equal(orderFirst, orderSecond)
		s.Equal(SourceOrder, second.Source)
		s.Equal(first.Verdict.Exempt, second.Verdict.Exempt)
		s.True(first.Changed)
		s.False(second.Changed)
		s.Equal(1, live.sets)
	})
}

func (s *ControllerSuite) TestFinalizeNonExemptOrder() {
	var published []events.Event
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt events.Event) error {
			published = append(published, evt)
			return nil
		}).AnyTimes()

	live := &liveFlag{}
	res, err := s.c.Reconcile(s.ctx, Request{
		Trigger:         TriggerOrderFinalizing,
		CustomerID:      "cust-7",
		OrderID:         "8001",
		Identifier:      ptr("FR12345678901"),
		BillingCountry:  "FR",
		ShippingCountry: "FR",
		Live:            live,
	})
	s.Require().NoError(err)
	s.False(res.Verdict.Exempt)

	order, err := s.records.Load(s.ctx, state.ScopeOrder, "8001")
	s.Require().NoError(err)
	s.Equal(state.Record{Identifier: "FR12345678901", Exempt: state.FlagNo}, order)

	s.Require().Len(published, 1)
	s.Equal(events.TypeCustomerIdentifierUpdated, published[0].Type)
	s.False(published[0].Exempt)
}

func (s *ControllerSuite) TestOverrideIgnoresBareYes() {
	s.Require().NoError(s.records.SaveFlag(s.ctx, state.ScopeOrder, "9001", state.FlagYes))

	s.False(s.c.Override(s.ctx, false, "9001"))
	s.True(s.c.Override(s.ctx, true, "9001"))
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Overrides.WithLabelValues("passthrough")))
}
