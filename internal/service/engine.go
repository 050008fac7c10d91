package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/availability"
	"courtbook/internal/cancellation"
	"courtbook/internal/events"
	"courtbook/internal/interval"
	"courtbook/internal/lanes"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/slots"

	"github.com/rs/zerolog"
)

// Options wires the optional collaborators of an Engine.
type Options struct {
	Cache          SlotCache
	Clock          Clock
	Tokens         TokenGenerator
	Members        MemberDirectory
	Location       *time.Location
	StorageRetries int
	RetryBackoff   time.Duration
}

// Engine is the reservation engine. It composes the pure slot, availability,
// cancellation and lane packages with the store, and is the only API exposed
// to transports.
type Engine struct {
	store   Store
	cache   SlotCache
	events  EventPublisher
	clock   Clock
	tokens  TokenGenerator
	members MemberDirectory
	loc     *time.Location
	retries int
	backoff time.Duration
	logger  *zerolog.Logger
}

func NewEngine(store Store, bus EventPublisher, logger *zerolog.Logger, opts Options) *Engine {
	e := &Engine{
		store:   store,
		cache:   opts.Cache,
		events:  bus,
		clock:   opts.Clock,
		tokens:  opts.Tokens,
		members: opts.Members,
		loc:     opts.Location,
		retries: opts.StorageRetries,
		backoff: opts.RetryBackoff,
		logger:  logger,
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.tokens == nil {
		e.tokens = UUIDTokens{}
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.retries < 0 {
		e.retries = 0
	}
	if e.backoff <= 0 {
		e.backoff = 50 * time.Millisecond
	}
	return e
}

// Now is the current wall-clock time in the booking timezone.
func (e *Engine) Now() time.Time {
	return interval.WallClock(e.clock.Now(), e.loc)
}

// stamp is the current instant as persisted on rows.
func (e *Engine) stamp() time.Time {
	return e.clock.Now().UTC()
}

// Today is the current date in the booking timezone.
func (e *Engine) Today() time.Time {
	return interval.DateOf(e.Now())
}

// ReserveInput describes a booking request. Date may be left zero, in which
// case the date of Start is used.
type ReserveInput struct {
	ResourceID  int64
	Date        time.Time
	Start       time.Time
	End         time.Time
	Renter      models.Renter
	AccessToken string
	Status      models.ReservationStatus
}

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	Reservation models.Reservation `json:"reservation"`
	FeeCents    int64              `json:"fee_cents"`
	IsFree      bool               `json:"is_free"`
}

// DayView is everything a calendar needs to draw one resource's day.
type DayView struct {
	Resource     models.Resource                 `json:"resource"`
	Date         time.Time                       `json:"date"`
	Reservations []models.Reservation            `json:"reservations"`
	Lanes        map[int64]models.LaneAssignment `json:"lanes"`
}

type day struct {
	resource *models.Resource
	rules    []models.OperatingHourRule
	closed   bool
}

func (e *Engine) loadDay(ctx context.Context, resourceID int64, date time.Time) (*day, error) {
	resource, err := withRetry(ctx, e, "get_resource", func() (*models.Resource, error) {
		return e.store.GetResource(ctx, resourceID)
	})
	if err != nil {
		return nil, err
	}
	closed, err := withRetry(ctx, e, "is_closed", func() (bool, error) {
		return e.store.IsClosed(ctx, resourceID, date)
	})
	if err != nil {
		return nil, err
	}
	rules, err := withRetry(ctx, e, "list_rules", func() ([]models.OperatingHourRule, error) {
		return e.store.ListRules(ctx, resourceID)
	})
	if err != nil {
		return nil, err
	}
	return &day{resource: resource, rules: rules, closed: closed}, nil
}

func (e *Engine) listDay(ctx context.Context, resourceID int64, date time.Time) ([]models.Reservation, error) {
	return withRetry(ctx, e, "list_day", func() ([]models.Reservation, error) {
		return e.store.ListForDay(ctx, resourceID, date)
	})
}

func (e *Engine) generate(d *day, date time.Time) []models.Slot {
	if d.closed {
		return nil
	}
	for _, r := range d.rules {
		if r.IsActive && r.DayOfWeek == date.Weekday() {
			if err := slots.ValidateRule(r); err != nil {
				e.logger.Warn().Err(err).Int64("resource_id", d.resource.ID).Int64("rule_id", r.ID).Msg("skipping operating hour rule")
			}
		}
	}
	return slots.Generate(*d.resource, d.rules, date)
}

// GenerateSlots returns the raw slots of a resource's day, all marked
// available. Closed days and days without operating hours are empty.
func (e *Engine) GenerateSlots(ctx context.Context, resourceID int64, date time.Time) ([]models.Slot, error) {
	date = interval.DateOf(date)
	d, err := e.loadDay(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	return e.generate(d, date), nil
}

// EvaluateSlots returns the day's slots with availability applied.
func (e *Engine) EvaluateSlots(ctx context.Context, resourceID int64, date time.Time) ([]models.Slot, error) {
	date = interval.DateOf(date)
	var generation string
	if e.cache != nil {
		cached, gen, ok := e.cache.Get(ctx, resourceID, date)
		if ok {
			metrics.IncSlotCache(true)
			return cached, nil
		}
		metrics.IncSlotCache(false)
		generation = gen
	}

	d, err := e.loadDay(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	existing, err := e.listDay(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}

	out := availability.EvaluateSlots(e.generate(d, date), existing)
	if e.cache != nil {
		e.cache.Set(ctx, resourceID, date, generation, out)
	}
	return out, nil
}

// PublicSlots is EvaluateSlots for renter-facing flows: inactive resources
// and days without operating hours are errors rather than empty lists.
func (e *Engine) PublicSlots(ctx context.Context, resourceID int64, date time.Time) ([]models.Slot, error) {
	resource, err := withRetry(ctx, e, "get_resource", func() (*models.Resource, error) {
		return e.store.GetResource(ctx, resourceID)
	})
	if err != nil {
		return nil, err
	}
	if !resource.IsActive {
		return nil, fmt.Errorf("resource %d: %w", resourceID, models.ErrResourceInactive)
	}
	out, err := e.EvaluateSlots(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	return slots.Require(out)
}

// DurationOption is one bookable length starting at a given slot.
type DurationOption struct {
	Minutes    int       `json:"minutes"`
	Label      string    `json:"label"`
	End        time.Time `json:"end"`
	PriceCents int64     `json:"price_cents"`
}

// DurationOptions lists how long a booking starting at start can run: one
// option per additional back-to-back free slot. A start that is not a free
// slot yields no options.
func (e *Engine) DurationOptions(ctx context.Context, resourceID int64, date, start time.Time) ([]DurationOption, error) {
	date = interval.DateOf(date)
	evaluated, err := e.EvaluateSlots(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	lengths := slots.DurationOptions(evaluated, start)
	if len(lengths) == 0 {
		return nil, nil
	}
	d, err := e.loadDay(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}

	out := make([]DurationOption, 0, len(lengths))
	for _, minutes := range lengths {
		end := start.Add(time.Duration(minutes) * time.Minute)
		price, err := slots.Quote(*d.resource, d.rules, date, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, DurationOption{
			Minutes:    minutes,
			Label:      slots.FormatDuration(minutes),
			End:        end,
			PriceCents: price,
		})
	}
	return out, nil
}

// CheckInterval reports whether [start, end) on date could be booked now.
func (e *Engine) CheckInterval(ctx context.Context, resourceID int64, date, start, end time.Time) (models.ConflictReport, error) {
	date = interval.DateOf(date)
	if err := interval.ValidateOnDate(date, start, end); err != nil {
		return models.ConflictReport{Start: start, End: end}, err
	}
	d, err := e.loadDay(ctx, resourceID, date)
	if err != nil {
		return models.ConflictReport{}, err
	}
	existing, err := e.listDay(ctx, resourceID, date)
	if err != nil {
		return models.ConflictReport{}, err
	}
	return e.check(d, date, start, end, existing)
}

func (e *Engine) check(d *day, date, start, end time.Time, existing []models.Reservation) (models.ConflictReport, error) {
	report, err := availability.CheckInterval(*d.resource, date, start, end, existing, e.Now())
	if err != nil {
		return report, err
	}
	switch {
	case d.closed:
		report.Reasons = append([]models.Reason{models.ReasonClosed}, report.Reasons...)
		report.Available = false
	case !slots.WithinHours(slots.Generate(*d.resource, d.rules, date), start, end):
		report.Reasons = withReason(report.Reasons, models.ReasonOutsideHours)
		report.Available = false
	}
	return report, nil
}

// withReason adds a policy reason ahead of any conflict reason.
func withReason(reasons []models.Reason, reason models.Reason) []models.Reason {
	for i, r := range reasons {
		if r == models.ReasonConflict {
			return append(append(reasons[:i:i], reason), reasons[i:]...)
		}
	}
	return append(reasons, reason)
}

// policyError turns the first non-conflict reason of report into an error.
func policyError(report models.ConflictReport) error {
	for _, r := range report.Reasons {
		if r != models.ReasonConflict {
			metrics.IncPolicyRejection(string(r))
			return &models.PolicyViolationError{Reason: r}
		}
	}
	return nil
}

func (e *Engine) resolveRenter(ctx context.Context, renter models.Renter) (models.Renter, error) {
	if err := renter.Validate(); err != nil {
		return renter, err
	}
	if !renter.IsMember() || e.members == nil {
		return renter, nil
	}
	name, err := e.members.MemberName(ctx, *renter.MemberID)
	if errors.Is(err, models.ErrNotFound) {
		return renter, fmt.Errorf("member %d: %w", *renter.MemberID, models.ErrInvalidRenter)
	}
	if err != nil {
		return renter, fmt.Errorf("resolve member %d: %w", *renter.MemberID, err)
	}
	renter.Name = name
	return renter, nil
}

// Reserve books an interval. Policy violations and conflicts visible in the
// current snapshot fail fast; the store re-checks atomically, so a lost race
// surfaces as *models.ConflictError as well.
func (e *Engine) Reserve(ctx context.Context, in ReserveInput) (*models.Reservation, error) {
	date := in.Date
	if date.IsZero() {
		date = in.Start
	}
	date = interval.DateOf(date)
	if err := interval.ValidateOnDate(date, in.Start, in.End); err != nil {
		return nil, err
	}
	if in.Status != "" && !in.Status.IsActive() {
		return nil, fmt.Errorf("initial status %q: %w", in.Status, models.ErrInvalidTransition)
	}

	renter, err := e.resolveRenter(ctx, in.Renter)
	if err != nil {
		return nil, err
	}

	d, err := e.loadDay(ctx, in.ResourceID, date)
	if err != nil {
		return nil, err
	}
	if !d.resource.IsActive {
		return nil, fmt.Errorf("resource %d: %w", in.ResourceID, models.ErrResourceInactive)
	}

	existing, err := e.listDay(ctx, in.ResourceID, date)
	if err != nil {
		return nil, err
	}
	report, err := e.check(d, date, in.Start, in.End, existing)
	if err != nil {
		return nil, err
	}
	if err := policyError(report); err != nil {
		return nil, err
	}
	if len(report.Conflicts) > 0 {
		metrics.IncConflict("reserve")
		return nil, &models.ConflictError{Conflicts: report.Conflicts}
	}

	price, err := slots.Quote(*d.resource, d.rules, date, in.Start, in.End)
	if err != nil {
		return nil, err
	}

	access := in.AccessToken
	if access == "" {
		access = e.tokens.NewToken()
	}
	candidate := &models.Reservation{
		ResourceID:    in.ResourceID,
		Renter:        renter,
		Date:          date,
		Start:         in.Start,
		End:           in.End,
		PriceCents:    price,
		Status:        in.Status,
		PaymentStatus: models.PaymentPending,
		TrackingToken: e.tokens.NewToken(),
		AccessToken:   access,
		CreatedAt:     e.stamp(),
	}

	created, err := withRetry(ctx, e, "reserve", func() (*models.Reservation, error) {
		return e.store.Reserve(ctx, candidate)
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			metrics.IncConflict("reserve")
		}
		return nil, err
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, created.ResourceID, created.Date)
	}
	metrics.IncReservationCreated(created.Renter.IsMember())
	e.publish(events.NewReservationEvent(events.ReservationCreated, *created, 0))

	e.logger.Info().
		Int64("reservation_id", created.ID).
		Int64("resource_id", created.ResourceID).
		Time("start", created.Start).
		Time("end", created.End).
		Int64("price_cents", created.PriceCents).
		Msg("reservation created")
	return created, nil
}

// Cancel cancels a reservation and reports the fee owed.
func (e *Engine) Cancel(ctx context.Context, id int64) (*CancelResult, error) {
	now, at := e.Now(), e.stamp()
	type cancelled struct {
		r       *models.Reservation
		outcome cancellation.Outcome
	}
	res, err := withRetry(ctx, e, "cancel", func() (cancelled, error) {
		r, outcome, err := e.store.Cancel(ctx, id, now, at)
		return cancelled{r: r, outcome: outcome}, err
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, res.r.ResourceID, res.r.Date)
	}
	metrics.IncReservationCancelled(res.outcome.IsFree)
	e.publish(events.NewReservationEvent(events.ReservationCancelled, *res.r, res.outcome.FeeCents))

	e.logger.Info().
		Int64("reservation_id", id).
		Bool("free", res.outcome.IsFree).
		Int64("fee_cents", res.outcome.FeeCents).
		Msg("reservation cancelled")
	return &CancelResult{Reservation: *res.r, FeeCents: res.outcome.FeeCents, IsFree: res.outcome.IsFree}, nil
}

// Reschedule moves a reservation to a new interval under the same rules as a
// new booking, ignoring the reservation's own current interval.
func (e *Engine) Reschedule(ctx context.Context, id int64, date, start, end time.Time) (*models.Reservation, error) {
	if date.IsZero() {
		date = start
	}
	date = interval.DateOf(date)
	if err := interval.ValidateOnDate(date, start, end); err != nil {
		return nil, err
	}

	current, err := e.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive() {
		return nil, fmt.Errorf("reschedule %s reservation %d: %w", current.Status, id, models.ErrInvalidTransition)
	}

	d, err := e.loadDay(ctx, current.ResourceID, date)
	if err != nil {
		return nil, err
	}
	existing, err := e.listDay(ctx, current.ResourceID, date)
	if err != nil {
		return nil, err
	}
	others := existing[:0:0]
	for _, r := range existing {
		if r.ID != id {
			others = append(others, r)
		}
	}

	report, err := e.check(d, date, start, end, others)
	if err != nil {
		return nil, err
	}
	if err := policyError(report); err != nil {
		return nil, err
	}
	if len(report.Conflicts) > 0 {
		metrics.IncConflict("reschedule")
		return nil, &models.ConflictError{Conflicts: report.Conflicts}
	}

	price, err := slots.Quote(*d.resource, d.rules, date, start, end)
	if err != nil {
		return nil, err
	}

	moved, err := withRetry(ctx, e, "reschedule", func() (*models.Reservation, error) {
		return e.store.Reschedule(ctx, models.RescheduleRequest{
			ID: id, Date: date, Start: start, End: end, PriceCents: price, UpdatedAt: e.stamp(),
		})
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			metrics.IncConflict("reschedule")
		}
		return nil, err
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, moved.ResourceID, current.Date, moved.Date)
	}
	e.publish(events.NewReservationEvent(events.ReservationRescheduled, *moved, 0))
	e.logger.Info().
		Int64("reservation_id", id).
		Time("from", current.Start).
		Time("to", moved.Start).
		Msg("reservation rescheduled")
	return moved, nil
}

// DayView loads a resource's reservations for date with their lane layout.
func (e *Engine) DayView(ctx context.Context, resourceID int64, date time.Time) (*DayView, error) {
	date = interval.DateOf(date)
	resource, err := withRetry(ctx, e, "get_resource", func() (*models.Resource, error) {
		return e.store.GetResource(ctx, resourceID)
	})
	if err != nil {
		return nil, err
	}
	reservations, err := e.listDay(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	return &DayView{
		Resource:     *resource,
		Date:         date,
		Reservations: reservations,
		Lanes:        lanes.Layout(reservations),
	}, nil
}

// LayoutLanes returns lane assignments for the active reservations on date.
func (e *Engine) LayoutLanes(ctx context.Context, resourceID int64, date time.Time) (map[int64]models.LaneAssignment, error) {
	view, err := e.DayView(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	return view.Lanes, nil
}

func (e *Engine) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return withRetry(ctx, e, "get_reservation", func() (*models.Reservation, error) {
		return e.store.GetReservation(ctx, id)
	})
}

// Lookup finds a reservation by its public tracking token.
func (e *Engine) Lookup(ctx context.Context, trackingToken string) (*models.Reservation, error) {
	if trackingToken == "" {
		return nil, models.ErrNotFound
	}
	return withRetry(ctx, e, "lookup", func() (*models.Reservation, error) {
		return e.store.GetByTrackingToken(ctx, trackingToken)
	})
}

// MyReservations lists the reservations grouped under a guest access token.
func (e *Engine) MyReservations(ctx context.Context, accessToken string) ([]models.Reservation, error) {
	if accessToken == "" {
		return nil, nil
	}
	return withRetry(ctx, e, "my_reservations", func() ([]models.Reservation, error) {
		return e.store.ListByAccessToken(ctx, accessToken)
	})
}

// SetPaymentStatus records a payment outcome reported by a collaborator.
func (e *Engine) SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus, method *string) (*models.Reservation, error) {
	at := e.stamp()
	r, err := withRetry(ctx, e, "set_payment", func() (*models.Reservation, error) {
		return e.store.SetPaymentStatus(ctx, id, status, method, at)
	})
	if err != nil {
		return nil, err
	}
	e.publish(events.NewReservationEvent(events.ReservationPaid, *r, 0))
	return r, nil
}

// CompletePast marks reservations whose interval is over as completed.
func (e *Engine) CompletePast(ctx context.Context) (int64, error) {
	now, at := e.Now(), e.stamp()
	n, err := withRetry(ctx, e, "complete_past", func() (int64, error) {
		return e.store.CompletePast(ctx, now, at)
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddReservationsCompleted(n)
		e.publish(events.Event{Type: events.ReservationsCompleted})
		e.logger.Info().Int64("completed", n).Msg("past reservations completed")
	}
	return n, nil
}

// RunCompletion calls CompletePast every interval until ctx is done.
func (e *Engine) RunCompletion(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := e.CompletePast(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("complete past reservations failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) publish(ev events.Event) {
	if e.events != nil {
		e.events.Publish(ev)
	}
}
