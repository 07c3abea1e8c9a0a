package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Wyydra/ya-signal/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/Wyydra/ya-signal/internal/core/port"
	"github.com/Wyydra/ya-signal/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Options tunes the HTTP surface and each WebSocket connection.
type Options struct {
	AllowedOrigins []string
	StaticDir      string
	ReadLimit      int64
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

func DefaultOptions() Options {
	return Options{
		AllowedOrigins: []string{"*"},
		ReadLimit:      64 * 1024,
		SendBuffer:     64,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
	}
}

type Handler struct {
	Signaling *service.SignalingService
	Sessions  *service.SessionService
	Hub       *ws.Hub
	Registry  port.RoomRegistry
	Metrics   http.Handler

	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(
	signaling *service.SignalingService,
	sessions *service.SessionService,
	hub *ws.Hub,
	registry port.RoomRegistry,
	metrics http.Handler,
	opts Options,
) *Handler {
	h := &Handler{
		Signaling: signaling,
		Sessions:  sessions,
		Hub:       hub,
		Registry:  registry,
		Metrics:   metrics,
		opts:      opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: h.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	r.Get("/ws", h.ServeWS)
	r.Get("/healthz", h.Health)
	r.Get("/api/rooms/{roomID}", h.GetRoom)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	if h.opts.StaticDir != "" {
		fs := http.FileServer(http.Dir(h.opts.StaticDir))
		r.Handle("/*", fs)
	}

	return r
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || lo.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	return lo.Contains(h.opts.AllowedOrigins, origin)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

type memberView struct {
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
}

type roomView struct {
	RoomID  domain.RoomID `json:"roomId"`
	Size    int           `json:"size"`
	Members []memberView  `json:"members"`
}

// GetRoom reports the current roster of a live room.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(chi.URLParam(r, "roomID"))

	members := h.Registry.Members(roomID)
	if len(members) == 0 {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	view := roomView{
		RoomID: roomID,
		Size:   len(members),
		Members: lo.Map(members, func(u domain.UserID, _ int) memberView {
			name, _ := h.Registry.DisplayName(u)
			return memberView{UserID: u, UserName: name}
		}),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("Failed to encode room")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}
