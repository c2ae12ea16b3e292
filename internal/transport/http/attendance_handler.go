package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"campus-portal-service/internal/app"
	"campus-portal-service/internal/auth"
	"campus-portal-service/internal/domain"
	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
)

// QRImageSize is the edge length in pixels of rendered QR codes.
const QRImageSize = 256

type AttendanceHandler struct {
	service *app.AttendanceService
}

type issuedToken struct {
	Token       string           `json:"token"`
	Payload     domain.QRPayload `json:"payload"`
	SecondsLeft int64            `json:"secondsLeft"`
}

// IssueToken signs a one-off token for the course.
func (h *AttendanceHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	payload, token, err := h.service.IssueToken(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, issuedToken{
		Token:       token,
		Payload:     payload,
		SecondsLeft: (payload.ExpiresAt - payload.Timestamp) / 1000,
	})
}

// RefreshDisplay regenerates the live display token now.
func (h *AttendanceHandler) RefreshDisplay(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.RefreshDisplay(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// DisplayPNG renders the live display token as a QR image.
func (h *AttendanceHandler) DisplayPNG(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Display(chi.URLParam(r, "courseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	if snap.IsExpired || snap.Token == "" {
		respondError(w, domain.ErrExpired)
		return
	}
	png, err := qrcode.Encode(snap.Token, qrcode.Medium, QRImageSize)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// List returns the course's attendance records.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	if records == nil {
		records = []domain.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

type checkInRequest struct {
	Token    string `json:"token"`
	CourseID string `json:"courseId"`
}

// CheckIn records the calling student's attendance for a scanned token.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.CourseID) == "" {
		respondError(w, domain.ErrInvalidFormat)
		return
	}
	rec, err := h.service.CheckIn(r.Context(), req.Token, req.CourseID, principal.Subject)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
