package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vikiysara/sprout-backend/internal/auth"
	"github.com/vikiysara/sprout-backend/internal/persona"
	"github.com/vikiysara/sprout-backend/internal/plant"
	"github.com/vikiysara/sprout-backend/internal/router"
	"github.com/vikiysara/sprout-backend/internal/sensor"
	"github.com/vikiysara/sprout-backend/pkg/ratelimit"
)

// Static replies used when no model produced usable text. The router
// never fabricates user-facing text; that is this layer's job.
const (
	chatQuotaFallback   = "I'm meditating... (API quota)"
	chatErrorFallback   = "My roots are crossed. Try again later."
	reportFallback      = "Your plant is surviving! (AI analysis unavailable)"
	reportGatheringData = "Gathering more data... Keep me connected!"
)

type Handler struct {
	router  *router.Router
	sensors sensor.Store
	ingest  *sensor.Queue
	plants  plant.Store
	limiter *ratelimit.Limiter
	tracer  trace.Tracer
}

func NewHandler(rt *router.Router, sensors sensor.Store, ingest *sensor.Queue, plants plant.Store, limiter *ratelimit.Limiter, tracer trace.Tracer) *Handler {
	return &Handler{
		router:  rt,
		sensors: sensors,
		ingest:  ingest,
		plants:  plants,
		limiter: limiter,
		tracer:  tracer,
	}
}

type chatRequest struct {
	UserMessage    string         `json:"user_message"`
	CurrentSensors sensor.Reading `json:"current_sensors"`
	PlantName      string         `json:"plant_name"`
	// Model optionally pins a specific model; the configured tiers
	// still serve as fallback behind it.
	Model string `json:"model"`
}

type careProfileRequest struct {
	PlantName string `json:"plant_name"`
	Model     string `json:"model"`
}

// HandleUpdateSensors buffers one telemetry reading for persistence.
func (h *Handler) HandleUpdateSensors(w http.ResponseWriter, r *http.Request) {
	var reading sensor.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	reading.DeviceID = auth.GetDeviceID(r.Context())

	if err := h.ingest.Enqueue(r.Context(), &reading); err != nil {
		if errors.Is(err, sensor.ErrQueueFull) {
			w.Header().Set("Retry-After", "5")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ingest backlog, retry shortly"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to accept reading"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "logged"})
}

// HandleChat answers a user message in the plant's voice.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserMessage == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_message is required"})
		return
	}

	if !h.allowAI(w, r) {
		return
	}

	profile, err := h.plants.Get(ctx)
	if err != nil {
		log.Printf("api: chat: failed to load profile: %v", err)
		writeJSON(w, http.StatusOK, map[string]string{"reply": chatErrorFallback})
		return
	}
	if req.PlantName != "" {
		profile.Name = req.PlantName
	}

	ctx, span := h.tracer.Start(ctx, "api.chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("device_id", auth.GetDeviceID(ctx)),
		attribute.String("request_id", auth.GetRequestID(ctx)),
		attribute.String("preferred_model", req.Model),
	)

	prompt := persona.ChatPrompt(req.UserMessage, req.CurrentSensors, profile)
	reply, err := h.router.Route(ctx, prompt, req.Model)
	if err != nil {
		if ctx.Err() != nil {
			return // client went away
		}
		log.Printf("api: chat: generation failed: %v", err)
		writeJSON(w, http.StatusOK, map[string]string{"reply": chatQuotaFallback})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// HandleWeeklyAnalytics returns per-day averages plus a generated
// report card over the last seven days of telemetry.
func (h *Handler) HandleWeeklyAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	weekAgo := time.Now().AddDate(0, 0, -7)

	stats, err := h.sensors.DailyAverages(ctx, weekAgo)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load analytics"})
		return
	}
	if stats == nil {
		stats = []*sensor.DailyAverage{}
	}

	// Not enough history for a meaningful report yet.
	if len(stats) < 2 {
		writeJSON(w, http.StatusOK, map[string]any{
			"daily_stats": stats,
			"report_card": reportGatheringData,
		})
		return
	}

	reportCard := reportFallback
	if h.allowQuiet(ctx) {
		ctx, span := h.tracer.Start(ctx, "api.weekly_report")
		defer span.End()

		profile, err := h.plants.Get(ctx)
		if err != nil {
			profile = plant.DefaultProfile()
		}
		lines, err := h.sensors.HistoryLines(ctx, weekAgo, 100)
		if err == nil {
			prompt := persona.WeeklyReportPrompt(profile, lines)
			if text, err := h.router.Route(ctx, prompt, ""); err == nil {
				reportCard = text
			} else {
				span.SetAttributes(attribute.Bool("report.fallback", true))
				log.Printf("api: weekly report generation failed: %v", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"daily_stats": stats,
		"report_card": reportCard,
	})
}

type careProfile struct {
	Tip      string `json:"tip"`
	Diseases any    `json:"diseases"`
}

// HandleCareProfile asks the model for a care tip and disease list for
// the named plant, falling back to canned advice when generation fails.
func (h *Handler) HandleCareProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req careProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PlantName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plant_name is required"})
		return
	}

	if !h.allowAI(w, r) {
		return
	}

	ctx, span := h.tracer.Start(ctx, "api.care_profile")
	defer span.End()
	span.SetAttributes(attribute.String("plant_name", req.PlantName))

	text, err := h.router.Route(ctx, persona.CarePrompt(req.PlantName), req.Model)
	if err == nil {
		var profile careProfile
		if jsonErr := json.Unmarshal([]byte(persona.StripCodeFences(text)), &profile); jsonErr == nil && profile.Tip != "" {
			writeJSON(w, http.StatusOK, profile)
			return
		}
		log.Printf("api: care profile: model returned unparseable JSON")
	} else {
		if ctx.Err() != nil {
			return
		}
		log.Printf("api: care profile generation failed: %v", err)
	}

	writeJSON(w, http.StatusOK, careProfile{
		Tip:      "I'm a " + req.PlantName + ", just keep me alive!",
		Diseases: "1. Rot (Check water)\n2. Pests (Look closely)\n3. Unknown (Google it)",
	})
}

// HandleGetProfile returns the saved plant profile.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.plants.Get(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleSaveProfile names (or renames) the plant.
func (h *Handler) HandleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var p plant.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if p.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if p.Species == "" {
		p.Species = plant.DefaultSpecies
	}

	if err := h.plants.Save(r.Context(), p); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save profile"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// allowAI enforces the per-device budget for AI-backed endpoints and
// writes the 429 itself when the budget is spent.
func (h *Handler) allowAI(w http.ResponseWriter, r *http.Request) bool {
	deviceID := auth.GetDeviceID(r.Context())
	allowed, err := h.limiter.Allow(r.Context(), deviceID)
	if err != nil || !allowed {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":       "rate limit exceeded",
			"retry_after": "60s",
		})
		return false
	}
	return true
}

// allowQuiet is the same budget check for endpoints that degrade to a
// static message instead of rejecting the request.
func (h *Handler) allowQuiet(ctx context.Context) bool {
	deviceID := auth.GetDeviceID(ctx)
	allowed, err := h.limiter.Allow(ctx, deviceID)
	return err == nil && allowed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
