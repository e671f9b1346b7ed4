package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/observability"
	"github.com/kita-live/kita-api/internal/projector"
	"github.com/kita-live/kita-api/internal/repository"
)

const (
	snapshotCacheTTL   = 30 * time.Minute
	realtimeSendBuffer = 32
)

// ConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ConnectionOptions struct {
	UID           string
	Name          string
	RoomCode      string
	CorrelationID string
	Context       context.Context
}

// RealtimeService fans room snapshots and chat messages out to websocket
// clients on this node and, through Redis and NATS, to every other node.
// It is the SnapshotPublisher the mutation services write through.
type RealtimeService interface {
	SnapshotPublisher
	ServeConnection(conn *websocket.Conn, opts ConnectionOptions)
	Start(ctx context.Context)
}

type realtimeService struct {
	rooms       repository.RoomRepository
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	hub         *roomHub
	nodeID      string
}

// roomHub keeps track of active websocket clients per room code.
type roomHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*roomClient]struct{}
	log   zerolog.Logger
}

type roomClient struct {
	conn    *websocket.Conn
	send    chan realtimeFrame
	options ConnectionOptions
	service *realtimeService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context

	// state and teacherUID are only touched while holding the hub lock, from
	// register and the broadcast paths.
	state      projector.State
	teacherUID string
}

// realtimeFrame is one websocket message sent to a client.
type realtimeFrame struct {
	Type        string                 `json:"type"`
	Room        *dto.RoomResponse      `json:"room,omitempty"`
	Transitions []projector.Transition `json:"transitions,omitempty"`
	Message     *dto.MessageResponse   `json:"message,omitempty"`
}

// roomEvent is the cross-node envelope carried over Redis and NATS.
type roomEvent struct {
	Source   string               `json:"source"`
	Snapshot *dto.RoomResponse    `json:"snapshot,omitempty"`
	Message  *dto.MessageResponse `json:"message,omitempty"`
	SentAt   time.Time            `json:"sent_at"`
}

// NewRealtimeService creates the websocket fan-out service.
func NewRealtimeService(rooms repository.RoomRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) RealtimeService {
	hub := &roomHub{
		rooms: make(map[string]map[*roomClient]struct{}),
		log:   logger.With().Str("component", "room_hub").Logger(),
	}

	streamChannel := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":rooms"
		cachePrefix = channelBase + ":rooms:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".rooms"
	}

	return &realtimeService{
		rooms:       rooms,
		redis:       redisClient,
		redisStream: streamChannel,
		redisCache:  cachePrefix,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "realtime_service").Logger(),
		tracer:      otel.Tracer("github.com/kita-live/kita-api/internal/service/realtime"),
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *realtimeService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *realtimeService) ServeConnection(conn *websocket.Conn, opts ConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &roomClient{
		conn:    conn,
		send:    make(chan realtimeFrame, realtimeSendBuffer),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	// The initial snapshot is fetched before registration and applied inside
	// register, under the hub lock, so it cannot race a concurrent broadcast
	// touching the same projector state.
	snapshot := s.currentSnapshot(baseCtx, opts.RoomCode)
	s.hub.register(client, snapshot)
	observability.RealtimeConnections().Inc()

	go client.writer()
	client.reader()
}

// PublishSnapshot delivers a fresh room document to every subscriber of the
// room, locally and across nodes.
func (s *realtimeService) PublishSnapshot(ctx context.Context, snapshot dto.RoomResponse) {
	spanCtx, span := s.tracer.Start(ctx, "realtime.snapshot", trace.WithAttributes(
		attribute.String("room.code", snapshot.Code),
	))
	defer span.End()

	s.cacheSnapshot(spanCtx, snapshot)
	s.hub.broadcastSnapshot(snapshot)
	observability.SnapshotsPublished().Inc()

	if err := s.publish(spanCtx, roomEvent{Source: s.nodeID, Snapshot: &snapshot, SentAt: time.Now().UTC()}); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("room_code", snapshot.Code).Msg("failed to publish snapshot event")
	}
}

// PublishMessage delivers a chat message to its room, respecting private
// message visibility per connection.
func (s *realtimeService) PublishMessage(ctx context.Context, message dto.MessageResponse) {
	s.hub.broadcastMessage(message)

	if err := s.publish(ctx, roomEvent{Source: s.nodeID, Message: &message, SentAt: time.Now().UTC()}); err != nil {
		s.logger.Warn().Err(err).Str("room_code", message.RoomCode).Msg("failed to publish message event")
	}
}

func (s *realtimeService) currentSnapshot(ctx context.Context, roomCode string) *dto.RoomResponse {
	if cached := s.fetchCachedSnapshot(ctx, roomCode); cached != nil {
		return cached
	}

	room, err := s.rooms.Get(ctx, roomCode)
	if err != nil {
		if !errors.Is(err, repository.ErrRoomNotFound) {
			s.logger.Warn().Err(err).Str("room_code", roomCode).Msg("failed to load room for initial snapshot")
		}
		return nil
	}

	snapshot := dto.NewRoomResponse(room)
	return &snapshot
}

func (s *realtimeService) cacheSnapshot(ctx context.Context, snapshot dto.RoomResponse) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal snapshot for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, snapshot.Code)
	if err := s.redis.Set(ctx, key, payload, snapshotCacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache snapshot")
	}
}

func (s *realtimeService) fetchCachedSnapshot(ctx context.Context, roomCode string) *dto.RoomResponse {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, roomCode)
	result, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var snapshot dto.RoomResponse
	if err := json.Unmarshal([]byte(result), &snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached snapshot")
		return nil
	}

	return &snapshot
}

func (s *realtimeService) publish(ctx context.Context, event roomEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *realtimeService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("room redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *realtimeService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "kita-rooms", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats rooms subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain rooms nats subscription")
		}
	}()
}

func (s *realtimeService) handleEvent(data []byte) {
	var event roomEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid room event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	if event.Snapshot != nil {
		s.hub.broadcastSnapshot(*event.Snapshot)
	}
	if event.Message != nil {
		s.hub.broadcastMessage(*event.Message)
	}
}

// register adds the client to its room and, when an initial snapshot is
// available, seeds the client's projector state while still holding the hub
// lock. That keeps every state mutation serialized with broadcastSnapshot.
func (h *roomHub) register(client *roomClient, snapshot *dto.RoomResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.RoomCode
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*roomClient]struct{})
	}
	h.rooms[room][client] = struct{}{}

	if snapshot != nil {
		client.teacherUID = snapshot.TeacherUID
		frame := realtimeFrame{
			Type:        "snapshot",
			Room:        snapshot,
			Transitions: client.state.Apply(snapshot.Settings),
		}
		select {
		case client.send <- frame:
		default:
			h.log.Debug().Str("room_code", room).Msg("dropping initial snapshot for slow client")
		}
	}

	h.log.Debug().Str("room_code", room).Str("uid", client.options.UID).Msg("realtime client connected")
}

func (h *roomHub) unregister(client *roomClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.RoomCode
	if clients, ok := h.rooms[room]; ok {
		if _, present := clients[client]; present {
			delete(clients, client)
			observability.RealtimeConnections().Dec()
		}
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Str("room_code", room).Str("uid", client.options.UID).Msg("realtime client disconnected")
}

// broadcastSnapshot feeds the snapshot through each client's projector so
// every connection only hears about the transitions it has not seen yet.
func (h *roomHub) broadcastSnapshot(snapshot dto.RoomResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.rooms[snapshot.Code]
	for client := range clients {
		client.teacherUID = snapshot.TeacherUID
		frame := realtimeFrame{
			Type:        "snapshot",
			Room:        &snapshot,
			Transitions: client.state.Apply(snapshot.Settings),
		}
		select {
		case client.send <- frame:
		default:
			h.log.Warn().Str("room_code", snapshot.Code).Str("uid", client.options.UID).Msg("dropping snapshot for slow client")
		}
	}
}

func (h *roomHub) broadcastMessage(message dto.MessageResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.rooms[message.RoomCode]
	for client := range clients {
		if !client.canSee(message) {
			continue
		}
		select {
		case client.send <- realtimeFrame{Type: "message", Message: &message}:
		default:
			h.log.Warn().Str("room_code", message.RoomCode).Str("uid", client.options.UID).Msg("dropping message for slow client")
		}
	}
}

// canSee gates private messages to the teacher, the sender and the recipient.
func (c *roomClient) canSee(message dto.MessageResponse) bool {
	if !message.IsPrivate {
		return true
	}
	if c.teacherUID != "" && c.options.UID == c.teacherUID {
		return true
	}
	return c.options.UID == message.SenderUID || c.options.UID == message.RecipientUID
}

func (c *roomClient) reader() {
	defer c.close()

	// Clients mutate rooms over HTTP; the socket is downstream only. The
	// read loop exists to notice the peer going away.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.service.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}
	}
}

func (c *roomClient) writer() {
	defer c.close()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *roomClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
