package hub

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"log/slog"

	"grabit/internal/config"
	"grabit/internal/logging"
	"grabit/internal/media"
	"grabit/internal/services"
)

// Message types delivered over the wire.
const (
	TypeProgress     = "progress"
	TypeStatus       = "status"
	TypeError        = "error"
	TypeMetadata     = "metadata"
	TypeHeartbeat    = "heartbeat"
	TypeSubscription = "subscription"
	TypePong         = "pong"
	TypeStats        = "stats"
)

// Message is the envelope every outbound event is wrapped in.
type Message struct {
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessage(msgType, taskID string, data any) Message {
	return Message{
		Type:      msgType,
		TaskID:    taskID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Stats summarize connection registries for the stats message and the
// status endpoint.
type Stats struct {
	ActiveConnections int `json:"active_connections"`
	TotalConnections  int `json:"total_connections"`
	ActiveTasks       int `json:"active_tasks"`
	MaxConnections    int `json:"max_connections"`
}

type registration struct {
	conn  *Conn
	reply chan bool
}

type subscription struct {
	conn   *Conn
	taskID string
}

type envelope struct {
	taskID string
	msg    Message
}

type direct struct {
	conn *Conn
	msg  Message
}

// Hub owns the global connection set and the task subscription registry.
// Both are mutated only by the Run loop; every other goroutine talks to
// the hub through its channels.
type Hub struct {
	heartbeatInterval time.Duration
	maxConnections    int
	logger            *slog.Logger

	register      chan registration
	unregister    chan *Conn
	subscribeCh   chan subscription
	unsubscribeCh chan subscription
	publishCh     chan envelope
	broadcastCh   chan Message
	directCh      chan direct
	done          chan struct{}

	conns       map[*Conn]struct{}
	subscribers map[string]map[*Conn]struct{}

	active atomic.Int64
	total  atomic.Int64
	tasks  atomic.Int64
}

// New builds a hub sized from the server configuration. Run must be
// started before connections are accepted.
func New(cfg *config.Config, logger *slog.Logger) *Hub {
	interval := time.Duration(cfg.Server.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{
		heartbeatInterval: interval,
		maxConnections:    cfg.Server.MaxConnections,
		logger:            logging.NewComponentLogger(logger, "hub"),
		register:          make(chan registration),
		unregister:        make(chan *Conn),
		subscribeCh:       make(chan subscription),
		unsubscribeCh:     make(chan subscription),
		publishCh:         make(chan envelope, 64),
		broadcastCh:       make(chan Message, 16),
		directCh:          make(chan direct, 64),
		done:              make(chan struct{}),
		conns:             make(map[*Conn]struct{}),
		subscribers:       make(map[string]map[*Conn]struct{}),
	}
}

// Run processes registry mutations and deliveries until ctx is cancelled.
// All connections are closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case reg := <-h.register:
			reg.reply <- h.add(reg.conn)
		case conn := <-h.unregister:
			h.remove(conn)
		case sub := <-h.subscribeCh:
			h.addSubscription(sub.conn, sub.taskID)
		case sub := <-h.unsubscribeCh:
			h.removeSubscription(sub.conn, sub.taskID)
		case env := <-h.publishCh:
			h.fanOut(env.taskID, env.msg)
		case msg := <-h.broadcastCh:
			h.fanOutAll(msg)
		case msg := <-h.directCh:
			h.deliver(msg.conn, msg.msg)
		case <-ticker.C:
			h.heartbeat()
		}
	}
}

// Connect registers a connection. Rejections are classified: a capacity
// error when the connection limit is reached, a connection error when the
// hub has shut down. Accepted connections receive a welcome message.
func (h *Hub) Connect(c *Conn) error {
	reply := make(chan bool, 1)
	select {
	case h.register <- registration{conn: c, reply: reply}:
	case <-h.done:
		return services.Wrap(services.ErrConnection, "hub", "connect", "hub stopped", nil)
	}
	select {
	case ok := <-reply:
		if !ok {
			return services.Wrap(services.ErrCapacity, "hub", "connect", "connection limit reached", nil)
		}
		return nil
	case <-h.done:
		return services.Wrap(services.ErrConnection, "hub", "connect", "hub stopped", nil)
	}
}

// Disconnect removes a connection from the global set and every
// subscription it holds. Safe to call more than once.
func (h *Hub) Disconnect(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Subscribe adds the connection to a task's subscriber set and confirms it.
func (h *Hub) Subscribe(c *Conn, taskID string) {
	select {
	case h.subscribeCh <- subscription{conn: c, taskID: taskID}:
	case <-h.done:
	}
}

// Unsubscribe removes the connection from a task's subscriber set.
func (h *Hub) Unsubscribe(c *Conn, taskID string) {
	select {
	case h.unsubscribeCh <- subscription{conn: c, taskID: taskID}:
	case <-h.done:
	}
}

// Publish delivers a message to the task's subscribers. Events for tasks
// nobody watches are dropped.
func (h *Hub) Publish(taskID string, msg Message) {
	if taskID == "" {
		return
	}
	select {
	case h.publishCh <- envelope{taskID: taskID, msg: msg}:
	case <-h.done:
	}
}

// BroadcastAll delivers a message to every connection.
func (h *Hub) BroadcastAll(msg Message) {
	select {
	case h.broadcastCh <- msg:
	case <-h.done:
	}
}

// PublishProgress forwards one progress observation to subscribers.
func (h *Hub) PublishProgress(ev media.ProgressEvent) {
	h.Publish(ev.TaskID, newMessage(TypeProgress, ev.TaskID, ev))
}

// PublishStatus announces a task status change with extra payload fields.
func (h *Hub) PublishStatus(taskID, status string, data map[string]any) {
	payload := map[string]any{"status": status}
	for k, v := range data {
		payload[k] = v
	}
	h.Publish(taskID, newMessage(TypeStatus, taskID, payload))
}

// PublishError announces a task failure.
func (h *Hub) PublishError(taskID, errMsg, errType string) {
	if errType == "" {
		errType = "error"
	}
	h.Publish(taskID, newMessage(TypeError, taskID, map[string]any{
		"error":      errMsg,
		"error_type": errType,
	}))
}

// PublishMetadata forwards extracted metadata to subscribers.
func (h *Hub) PublishMetadata(taskID string, metadata any) {
	h.Publish(taskID, newMessage(TypeMetadata, taskID, metadata))
}

// Stats reports the current registry counters.
func (h *Hub) Stats() Stats {
	return Stats{
		ActiveConnections: int(h.active.Load()),
		TotalConnections:  int(h.total.Load()),
		ActiveTasks:       int(h.tasks.Load()),
		MaxConnections:    h.maxConnections,
	}
}

// sendTo queues a message for one connection through the Run loop.
func (h *Hub) sendTo(c *Conn, msg Message) {
	select {
	case h.directCh <- direct{conn: c, msg: msg}:
	case <-h.done:
	}
}

func (h *Hub) sendError(c *Conn, errMsg string) {
	h.sendTo(c, newMessage(TypeError, "", map[string]any{"error": errMsg}))
}

// add registers a connection unless the hub is at capacity.
func (h *Hub) add(c *Conn) bool {
	if h.maxConnections > 0 && len(h.conns) >= h.maxConnections {
		h.logger.Warn("connection rejected: at capacity",
			logging.Int("max_connections", h.maxConnections))
		return false
	}
	h.conns[c] = struct{}{}
	h.total.Add(1)
	h.syncCounters()

	h.logger.Info("connection opened",
		logging.String("connection_id", c.id),
		logging.Int("active_connections", len(h.conns)))

	h.deliver(c, newMessage(TypeStatus, "", map[string]any{
		"message":       "Connected to GRABIT WebSocket",
		"connection_id": c.id,
		"server_time":   unixNow(),
	}))
	return true
}

// remove drops the connection from the global set and all subscriber
// sets, then closes its send channel. No-op for unknown connections.
func (h *Hub) remove(c *Conn) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	for taskID, subs := range h.subscribers {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.subscribers, taskID)
		}
	}
	close(c.send)
	h.syncCounters()

	h.logger.Info("connection closed",
		logging.String("connection_id", c.id),
		logging.Int("active_connections", len(h.conns)))
}

func (h *Hub) addSubscription(c *Conn, taskID string) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	subs, ok := h.subscribers[taskID]
	if !ok {
		subs = make(map[*Conn]struct{})
		h.subscribers[taskID] = subs
	}
	subs[c] = struct{}{}
	h.syncCounters()

	h.deliver(c, newMessage(TypeSubscription, taskID, map[string]any{
		"message": "Subscribed to task " + taskID,
	}))
}

func (h *Hub) removeSubscription(c *Conn, taskID string) {
	subs, ok := h.subscribers[taskID]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.subscribers, taskID)
	}
	h.syncCounters()
}

// fanOut delivers to the task's current subscribers. The set is copied
// first so slow-consumer purges cannot disturb iteration.
func (h *Hub) fanOut(taskID string, msg Message) {
	subs, ok := h.subscribers[taskID]
	if !ok || len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast failed", logging.Error(err))
		return
	}
	for _, c := range connSnapshot(subs) {
		h.deliverPayload(c, payload)
	}
}

func (h *Hub) fanOutAll(msg Message) {
	if len(h.conns) == 0 {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast failed", logging.Error(err))
		return
	}
	for _, c := range connSnapshot(h.conns) {
		h.deliverPayload(c, payload)
	}
}

func (h *Hub) deliver(c *Conn, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message failed", logging.Error(err))
		return
	}
	h.deliverPayload(c, payload)
}

// deliverPayload queues bytes for one connection. A connection whose send
// buffer is full is treated as dead and purged so it cannot stall others.
func (h *Hub) deliverPayload(c *Conn, payload []byte) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.logger.Warn("dropping slow connection",
			logging.String("connection_id", c.id))
		h.remove(c)
	}
}

// heartbeat pings every connection with the active count. Skipped when
// nobody is connected.
func (h *Hub) heartbeat() {
	if len(h.conns) == 0 {
		return
	}
	h.fanOutAll(newMessage(TypeHeartbeat, "", map[string]any{
		"timestamp":          unixNow(),
		"active_connections": len(h.conns),
	}))
}

func (h *Hub) closeAll() {
	for c := range h.conns {
		close(c.send)
	}
	h.conns = make(map[*Conn]struct{})
	h.subscribers = make(map[string]map[*Conn]struct{})
	h.syncCounters()
}

func (h *Hub) syncCounters() {
	h.active.Store(int64(len(h.conns)))
	h.tasks.Store(int64(len(h.subscribers)))
}

func connSnapshot(set map[*Conn]struct{}) []*Conn {
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
