// Package availability answers "is this slot free" for UI callers.
// It only ever reads; the booking coordinator stays authoritative at
// commit time, so the view here may lag briefly behind the store.
package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"groomly/internal/domain"
	"groomly/internal/events"
	"groomly/internal/metrics"
	"groomly/internal/models"

	"github.com/rs/zerolog"
)

// Observer tracks the schedule index per shop-day and keeps a validated
// snapshot: the raw interval list minus entries whose appointment has
// been cancelled but not yet pruned from the index.
type Observer struct {
	reader domain.ScheduleReader
	snaps  domain.SnapshotRepository
	logger *zerolog.Logger

	mu       sync.RWMutex
	watchers map[string]*watcher
}

type watcher struct {
	shopID string
	date   time.Time

	mu     sync.RWMutex
	latest *models.AvailabilitySnapshot
	subs   map[int]chan models.AvailabilitySnapshot
	nextID int
}

// NewObserver wires the observer into the event bus. The snapshot
// repository is optional; when present the latest validated view is
// written through for other instances to serve.
func NewObserver(reader domain.ScheduleReader, snaps domain.SnapshotRepository, bus *events.EventBus, logger *zerolog.Logger) *Observer {
	o := &Observer{
		reader:   reader,
		snaps:    snaps,
		logger:   logger,
		watchers: make(map[string]*watcher),
	}

	if bus != nil {
		bus.Subscribe(events.EventScheduleUpdated, o.onScheduleUpdated)
	}
	return o
}

func watchKey(shopID string, date time.Time) string {
	return shopID + "|" + models.DayKey(date)
}

func (o *Observer) onScheduleUpdated(event *events.Event) error {
	var payload events.ScheduleEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode schedule event: %w", err)
	}

	o.mu.RLock()
	w := o.watchers[watchKey(payload.ShopID, payload.Date)]
	o.mu.RUnlock()
	if w == nil {
		// Nobody watches this shop-day here, but another instance may
		// still be serving the cached snapshot. Drop it so the next
		// read rebuilds from the store.
		if o.snaps != nil {
			if err := o.snaps.ClearSnapshot(context.Background(), payload.ShopID, payload.Date); err != nil {
				o.logger.Warn().Err(err).Msg("clear availability snapshot")
			}
		}
		return nil
	}

	snap, err := o.refresh(context.Background(), w)
	if err != nil {
		o.logger.Error().Err(err).
			Str("shop_id", payload.ShopID).
			Str("date", models.DayKey(payload.Date)).
			Msg("availability refresh failed")
		return err
	}
	w.broadcast(snap)
	return nil
}

// refresh re-reads the index and runs the validity pass: the status of
// every referenced appointment is fetched concurrently, with no
// ordering between the lookups.
func (o *Observer) refresh(ctx context.Context, w *watcher) (*models.AvailabilitySnapshot, error) {
	sched, err := o.reader.GetDaySchedule(ctx, w.shopID, w.date)
	if err != nil {
		return nil, err
	}

	keep := make([]bool, len(sched.Intervals))
	var wg sync.WaitGroup
	for i, iv := range sched.Intervals {
		wg.Add(1)
		go func(i int, iv models.Interval) {
			defer wg.Done()
			a, err := o.reader.GetAppointment(ctx, w.shopID, iv.AppointmentID)
			if err != nil {
				// Missing or unreadable reference counts as stale.
				return
			}
			keep[i] = a.Active()
		}(i, iv)
	}
	wg.Wait()

	valid := make([]models.Interval, 0, len(sched.Intervals))
	for i, iv := range sched.Intervals {
		if keep[i] {
			valid = append(valid, iv)
		}
	}

	snap := &models.AvailabilitySnapshot{
		ShopID:    w.shopID,
		Date:      w.date,
		Intervals: valid,
		UpdatedAt: time.Now(),
	}

	w.mu.Lock()
	w.latest = snap
	w.mu.Unlock()

	metrics.IncObserverRefresh()

	if o.snaps != nil {
		if err := o.snaps.SetSnapshot(ctx, snap); err != nil {
			o.logger.Warn().Err(err).Msg("persist availability snapshot")
		}
	}
	return snap, nil
}

func (w *watcher) broadcast(snap *models.AvailabilitySnapshot) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, ch := range w.subs {
		// Latest-wins: replace a pending snapshot instead of blocking.
		select {
		case ch <- *snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- *snap:
			default:
			}
		}
	}
}

func (o *Observer) watcherFor(shopID string, date time.Time) *watcher {
	key := watchKey(shopID, date)

	o.mu.Lock()
	defer o.mu.Unlock()
	if w, ok := o.watchers[key]; ok {
		return w
	}

	o.evictPastLocked()

	w := &watcher{
		shopID: shopID,
		date:   date,
		subs:   make(map[int]chan models.AvailabilitySnapshot),
	}
	o.watchers[key] = w
	return w
}

// evictPastLocked drops watchers for days already over that nobody
// subscribes to, so the map cannot grow without bound as days roll
// past. Caller holds o.mu.
func (o *Observer) evictPastLocked() {
	today := models.DayKey(time.Now())
	for key, w := range o.watchers {
		if models.DayKey(w.date) >= today {
			continue
		}
		w.mu.RLock()
		idle := len(w.subs) == 0
		w.mu.RUnlock()
		if idle {
			delete(o.watchers, key)
		}
	}
}

// Subscribe returns a live stream of validated interval sets for one
// shop-day plus a cancel func. The current snapshot is delivered first.
func (o *Observer) Subscribe(ctx context.Context, shopID string, date time.Time) (<-chan models.AvailabilitySnapshot, func(), error) {
	w := o.watcherFor(shopID, date)

	snap, err := o.currentSnapshot(ctx, w)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan models.AvailabilitySnapshot, 1)
	ch <- *snap

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = ch
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel, nil
}

func (o *Observer) currentSnapshot(ctx context.Context, w *watcher) (*models.AvailabilitySnapshot, error) {
	w.mu.RLock()
	latest := w.latest
	w.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}

	// Cold watcher: prefer a snapshot another instance already
	// validated over rebuilding from the store. Schedule events clear
	// the cache, so a hit is at most one refresh behind.
	if o.snaps != nil {
		cached, err := o.snaps.GetSnapshot(ctx, w.shopID, w.date)
		if err != nil {
			o.logger.Warn().Err(err).Msg("read availability snapshot cache")
		} else if cached != nil {
			w.mu.Lock()
			w.latest = cached
			w.mu.Unlock()
			return cached, nil
		}
	}
	return o.refresh(ctx, w)
}

// Snapshot returns the latest validated view for a shop-day, reading
// through to the store on first access.
func (o *Observer) Snapshot(ctx context.Context, shopID string, date time.Time) (*models.AvailabilitySnapshot, error) {
	return o.currentSnapshot(ctx, o.watcherFor(shopID, date))
}

// IsSlotBooked reports whether a candidate [time, time+duration) slot
// overlaps the latest validated interval set. Same half-open predicate
// as the booking transaction, so UI feedback and transactional outcomes
// never structurally disagree.
func (o *Observer) IsSlotBooked(ctx context.Context, shopID string, date time.Time, clock string, duration int) (bool, error) {
	if duration <= 0 {
		return false, fmt.Errorf("duration must be positive, got %d", duration)
	}
	start, err := models.ParseClock(clock)
	if err != nil {
		return false, err
	}

	snap, err := o.Snapshot(ctx, shopID, date)
	if err != nil {
		return false, err
	}
	return snap.SlotBooked(start, duration), nil
}
