package http

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campus-portal-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// QRWSHandler streams a course's live QR display.
type QRWSHandler struct {
	service  *app.AttendanceService
	upgrader websocket.Upgrader
}

func NewQRWSHandler(service *app.AttendanceService, origins []string) *QRWSHandler {
	return &QRWSHandler{service: service, upgrader: newUpgrader(origins)}
}

// ServeWS sends a snapshot on every refresh and countdown step. Any inbound
// message of type "refresh" regenerates the token immediately.
func (h *QRWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("qr ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.service.Watch(courseID)
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var in inboundMessage
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			if in.Type == "refresh" {
				if _, err := h.service.RefreshDisplay(r.Context(), courseID); err != nil {
					log.Printf("qr refresh %s: %v", courseID, err)
				}
			}
		}
	}()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(outboundMessage[any]{Type: "qr", Payload: snap}); err != nil {
				log.Printf("qr ws write error: %v", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}

// newUpgrader accepts same-origin requests, non-browser clients and the
// configured CORS origins.
func newUpgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}
