package sensorhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/breathescope/breathescope/pkg/score"
)

// SampleSink receives converted exposure samples. The daemon implements
// this by feeding each user's monitoring stream.
type SampleSink interface {
	Push(userID string, sample score.ExposureSample) error
}

// Handler processes incoming signed sensor pushes.
type Handler struct {
	secret []byte
	sink   SampleSink
	log    zerolog.Logger
}

// NewHandler creates a new sensor push Handler.
func NewHandler(secret []byte, sink SampleSink, log zerolog.Logger) *Handler {
	return &Handler{secret: secret, sink: sink, log: log}
}

// ServeHTTP handles incoming sensor push requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MB limit
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Breathescope-Signature-256")
	if err := VerifySignature(body, signature, h.secret); err != nil {
		h.log.Warn().Err(err).Msg("sensor push signature verification failed")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := ParseEvent(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("sensor push parse error")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, sample := range event.Samples() {
		if err := h.sink.Push(event.UserID, sample); err != nil {
			h.log.Warn().Err(err).Str("user", event.UserID).Msg("dropping sensor sample")
			continue
		}
		accepted++
	}

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]int{"accepted": accepted})
}
