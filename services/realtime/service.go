// Package realtime notifies subscribers when the result of a list query
// changes. Subscriptions are polled on a cron schedule by default; postgres
// and mongodb targets can opt into native change notifications instead.
package realtime

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"dbautorest/pkg/logger"
	"dbautorest/pkg/metrics"
	"dbautorest/services/cache"
	"dbautorest/services/dialect"
	"dbautorest/services/engine"
)

// Lister runs list queries. *engine.Engine implements it.
type Lister interface {
	HandleList(ctx context.Context, rc engine.RequestContext, entityRef string, params engine.ListParams) (*engine.Envelope, error)
}

// Deps are the collaborators of the service. Entities, Resolver and Pools
// are only needed for native mode.
type Deps struct {
	Lister   Lister
	Entities engine.EntityLookup
	Resolver engine.ConnectionResolver
	Pools    engine.Pools
}

// Options tune the service.
type Options struct {
	DefaultInterval time.Duration
	Buffer          int
	CheckTimeout    time.Duration
}

// Service owns every subscription and the scheduler polling them.
type Service struct {
	deps Deps
	opts Options

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	pg     *pgListeners

	mu       sync.Mutex
	subs     map[string]*Subscription
	byClient map[string]map[string]struct{}
	closed   bool
}

// NewService creates the service and starts its scheduler.
func NewService(deps Deps, opts Options) *Service {
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = 5 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		deps:     deps,
		opts:     opts,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger.Printf{})))),
		ctx:      ctx,
		cancel:   cancel,
		subs:     map[string]*Subscription{},
		byClient: map[string]map[string]struct{}{},
	}
	s.pg = newPGListeners(ctx)
	s.cron.Start()
	return s
}

// Subscribe registers a watch. Native mode falls back to polling when the
// backend has no change feed.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error) {
	if req.Interval <= 0 {
		req.Interval = s.opts.DefaultInterval
	}
	if req.Mode == "" {
		req.Mode = ModePoll
	}
	req.Params.BypassCache = true

	// Validates the entity, policies and filter up front.
	if _, err := s.deps.Lister.HandleList(ctx, req.Request, req.Entity, req.Params); err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:       uuid.NewString(),
		ClientID: req.ClientID,
		Entity:   req.Entity,
		Mode:     req.Mode,
		req:      req,
		events:   make(chan Event, s.opts.Buffer),
		kick:     make(chan struct{}, 1),
	}

	if sub.Mode == ModeNative {
		if err := s.startNative(ctx, sub); err != nil {
			sub.log().Warnf("native change notifications unavailable, polling instead: %v", err)
			sub.Mode = ModePoll
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.close()
		return nil, fmt.Errorf("realtime service is shut down")
	}
	if sub.Mode == ModePoll {
		sub.entryID = s.cron.Schedule(cron.Every(req.Interval), cron.FuncJob(func() { s.check(sub) }))
	}
	s.subs[sub.ID] = sub
	if s.byClient[sub.ClientID] == nil {
		s.byClient[sub.ClientID] = map[string]struct{}{}
	}
	s.byClient[sub.ClientID][sub.ID] = struct{}{}
	s.mu.Unlock()

	metrics.Subscriptions.WithLabelValues(string(sub.Mode)).Inc()
	sub.log().Infof("subscribed (mode=%s, interval=%s)", sub.Mode, req.Interval)

	// Record the baseline right away so the first change is not missed.
	go s.check(sub)
	return sub, nil
}

// Unsubscribe stops a subscription and closes its event channel.
func (s *Service) Unsubscribe(id string) bool {
	s.mu.Lock()
	sub, ok := s.remove(id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.release(sub)
	return true
}

// DisconnectClient drops every subscription of a client.
func (s *Service) DisconnectClient(clientID string) int {
	s.mu.Lock()
	var removed []*Subscription
	for id := range s.byClient[clientID] {
		if sub, ok := s.remove(id); ok {
			removed = append(removed, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range removed {
		s.release(sub)
	}
	if len(removed) > 0 {
		logger.Infof("client %s disconnected, dropped %d subscriptions", clientID, len(removed))
	}
	return len(removed)
}

// Len returns the number of active subscriptions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Shutdown stops the scheduler and native listeners and closes every
// subscription. It waits for running checks until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*Subscription, 0, len(s.subs))
	for id := range s.subs {
		if sub, ok := s.remove(id); ok {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	stopped := s.cron.Stop()
	s.cancel()
	for _, sub := range subs {
		s.release(sub)
	}
	s.pg.closeAll()

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// remove unlinks a subscription. Callers hold s.mu.
func (s *Service) remove(id string) (*Subscription, bool) {
	sub, ok := s.subs[id]
	if !ok {
		return nil, false
	}
	delete(s.subs, id)
	if ids := s.byClient[sub.ClientID]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byClient, sub.ClientID)
		}
	}
	return sub, true
}

func (s *Service) release(sub *Subscription) {
	if sub.entryID != 0 {
		s.cron.Remove(sub.entryID)
	}
	sub.close()
	metrics.Subscriptions.WithLabelValues(string(sub.Mode)).Dec()
	sub.log().Debugf("unsubscribed")
}

// check re-runs the list query and broadcasts when its checksum changed.
func (s *Service) check(sub *Subscription) {
	sub.runMu.Lock()
	defer sub.runMu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.CheckTimeout)
	defer cancel()

	env, err := s.deps.Lister.HandleList(ctx, sub.req.Request, sub.req.Entity, sub.req.Params)
	if err != nil {
		if s.ctx.Err() == nil {
			metrics.RealtimeEvents.WithLabelValues("error").Inc()
			sub.log().Warnf("change check failed: %v", err)
		}
		return
	}
	sum, err := cache.Checksum(struct {
		Data  any   `json:"data"`
		Total int64 `json:"total"`
	}{env.Data, env.Total})
	if err != nil {
		sub.log().Errorf("failed to checksum page: %v", err)
		return
	}
	if !sub.observe(sum) {
		return
	}

	ev := Event{
		SubscriptionID: sub.ID,
		Entity:         sub.Entity,
		Checksum:       strconv.FormatUint(sum, 16),
		Total:          env.Total,
		Data:           env.Data,
		At:             time.Now().UTC(),
	}
	if sub.send(ev) {
		metrics.RealtimeEvents.WithLabelValues("sent").Inc()
		return
	}
	metrics.RealtimeEvents.WithLabelValues("dropped").Inc()
	sub.log().Warnf("subscriber is not keeping up, change event dropped")
}

// notify requests an immediate check; bursts coalesce into one.
func (s *Service) notify(sub *Subscription) {
	select {
	case sub.kick <- struct{}{}:
	default:
	}
}

// startNative wires sub to the backend's change feed.
func (s *Service) startNative(ctx context.Context, sub *Subscription) error {
	if s.deps.Entities == nil || s.deps.Resolver == nil || s.deps.Pools == nil {
		return fmt.Errorf("native mode is not configured")
	}
	rc := sub.req.Request
	entity, err := s.deps.Entities.FindByRef(nil, rc.ServiceID, sub.req.Entity)
	if err != nil {
		return fmt.Errorf("look up entity: %w", err)
	}
	svc, err := s.deps.Resolver.Resolve(ctx, rc.ServiceID, rc.Environment)
	if err != nil {
		return err
	}
	kind, err := dialect.ParseKind(svc.Connection.Type)
	if err != nil {
		return err
	}
	table := dialect.TableRef{Schema: entity.Schema(), Name: entity.Name}

	subCtx, cancel := context.WithCancel(s.ctx)
	switch kind {
	case dialect.Postgres:
		unregister, err := s.pg.register(ctx, svc.Connection, table, sub.ID, func() { s.notify(sub) })
		if err != nil {
			cancel()
			return err
		}
		sub.stop = func() { unregister(); cancel() }
	case dialect.MongoDB:
		ex, err := s.deps.Pools.Get(ctx, svc.Connection)
		if err != nil {
			cancel()
			return err
		}
		w, ok := ex.(changeWatcher)
		if !ok {
			cancel()
			return fmt.Errorf("executor for %s has no change streams", kind)
		}
		if err := watchCollection(subCtx, w, table.Name, func() { s.notify(sub) }); err != nil {
			cancel()
			return err
		}
		sub.stop = cancel
	default:
		cancel()
		return fmt.Errorf("%s has no native change feed", kind)
	}

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case <-sub.kick:
				s.check(sub)
			}
		}
	}()
	return nil
}
