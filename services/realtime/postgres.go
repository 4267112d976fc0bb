package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"dbautorest/models"
	"dbautorest/pkg/logger"
	"dbautorest/services/dialect"
	"dbautorest/services/driver"
)

// Channel carries "schema.table" payloads from the notify trigger.
const Channel = "dbautorest_changes"

const notifyFunction = `CREATE OR REPLACE FUNCTION dbautorest_notify_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('` + Channel + `', TG_TABLE_SCHEMA || '.' || TG_TABLE_NAME);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`

// TriggerStatements returns the statements installing the change trigger on t.
func TriggerStatements(t dialect.TableRef) []string {
	q := dialect.NewPostgres()
	schema := t.Schema
	if schema == "" {
		schema = "public"
	}
	return []string{
		notifyFunction,
		fmt.Sprintf("CREATE OR REPLACE TRIGGER dbautorest_notify_change AFTER INSERT OR UPDATE OR DELETE OR TRUNCATE ON %s.%s FOR EACH STATEMENT EXECUTE FUNCTION dbautorest_notify_change()",
			q.QuoteIdent(schema), q.QuoteIdent(t.Name)),
	}
}

func payloadKey(t dialect.TableRef) string {
	schema := t.Schema
	if schema == "" {
		schema = "public"
	}
	return schema + "." + t.Name
}

// pgListeners keeps one LISTEN connection per target database.
type pgListeners struct {
	ctx     context.Context
	connect func(ctx context.Context, cfg models.ConnectionConfig) (*pgx.Conn, error)

	mu   sync.Mutex
	hubs map[string]*pgHub
}

// pgHub fans notifications of one database out to subscriptions by table.
type pgHub struct {
	cfg    models.ConnectionConfig
	cancel context.CancelFunc

	mu       sync.Mutex
	handlers map[string]map[string]func() // table -> subscription -> callback
}

func newPGListeners(ctx context.Context) *pgListeners {
	return &pgListeners{ctx: ctx, connect: connectPG, hubs: map[string]*pgHub{}}
}

func connectPG(ctx context.Context, cfg models.ConnectionConfig) (*pgx.Conn, error) {
	connCfg, err := driver.PostgresConnConfig(cfg)
	if err != nil {
		return nil, err
	}
	return pgx.ConnectConfig(ctx, connCfg)
}

// register installs the trigger on table and routes its notifications to fn.
func (l *pgListeners) register(ctx context.Context, cfg models.ConnectionConfig, table dialect.TableRef, subID string, fn func()) (func(), error) {
	if err := l.installTrigger(ctx, cfg, table); err != nil {
		return nil, err
	}

	key := cfg.Fingerprint()
	l.mu.Lock()
	hub, ok := l.hubs[key]
	if !ok {
		conn, err := l.connect(ctx, cfg)
		if err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("connect listener: %w", err)
		}
		if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
			conn.Close(ctx)
			l.mu.Unlock()
			return nil, fmt.Errorf("listen on %s: %w", Channel, err)
		}
		hubCtx, cancel := context.WithCancel(l.ctx)
		hub = &pgHub{cfg: cfg, cancel: cancel, handlers: map[string]map[string]func(){}}
		l.hubs[key] = hub
		go l.run(hubCtx, hub, conn)
	}
	l.mu.Unlock()

	tk := payloadKey(table)
	hub.mu.Lock()
	if hub.handlers[tk] == nil {
		hub.handlers[tk] = map[string]func(){}
	}
	hub.handlers[tk][subID] = fn
	hub.mu.Unlock()

	return func() { l.unregister(key, hub, tk, subID) }, nil
}

func (l *pgListeners) unregister(key string, hub *pgHub, table, subID string) {
	hub.mu.Lock()
	delete(hub.handlers[table], subID)
	if len(hub.handlers[table]) == 0 {
		delete(hub.handlers, table)
	}
	empty := len(hub.handlers) == 0
	hub.mu.Unlock()
	if !empty {
		return
	}

	l.mu.Lock()
	if l.hubs[key] == hub {
		delete(l.hubs, key)
	}
	l.mu.Unlock()
	hub.cancel()
}

func (l *pgListeners) installTrigger(ctx context.Context, cfg models.ConnectionConfig, table dialect.TableRef) error {
	conn, err := l.connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect for trigger install: %w", err)
	}
	defer conn.Close(context.Background())
	for _, stmt := range TriggerStatements(table) {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("install change trigger on %s: %w", payloadKey(table), err)
		}
	}
	return nil
}

// run waits for notifications until ctx ends, reconnecting after errors.
func (l *pgListeners) run(ctx context.Context, hub *pgHub, conn *pgx.Conn) {
	defer func() {
		if conn != nil {
			conn.Close(context.Background())
		}
	}()
	for {
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			c, err := l.connect(ctx, hub.cfg)
			if err == nil {
				_, err = c.Exec(ctx, "LISTEN "+Channel)
				if err != nil {
					c.Close(context.Background())
				}
			}
			if err != nil {
				logger.Warnf("postgres change listener reconnect failed: %v", err)
				continue
			}
			conn = c
			// Changes may have been missed while disconnected.
			hub.dispatchAll()
		}

		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warnf("postgres change listener lost its connection: %v", err)
			conn.Close(context.Background())
			conn = nil
			continue
		}
		hub.dispatch(n.Payload)
	}
}

func (h *pgHub) dispatch(table string) {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.handlers[table]))
	for _, fn := range h.handlers[table] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (h *pgHub) dispatchAll() {
	h.mu.Lock()
	var fns []func()
	for _, subs := range h.handlers {
		for _, fn := range subs {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (l *pgListeners) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, hub := range l.hubs {
		hub.cancel()
		delete(l.hubs, key)
	}
}
