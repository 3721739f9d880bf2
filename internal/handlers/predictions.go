package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matchcast/predictions-api/internal/logic"
	"github.com/matchcast/predictions-api/internal/models"
)

// StorePrediction handles POST /predictions
// @Summary Store Prediction
// @Tags Predictions
// @Accept json
// @Produce json
// @Security APIKey
// @Param body body models.StorePredictionRequest true "Prediction"
// @Success 201 {object} models.StorePredictionResponse
// @Failure 400 {object} map[string]interface{} "Missing required fields"
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string "Already verified"
// @Router /predictions [post]
func (h *Handler) StorePrediction(w http.ResponseWriter, r *http.Request) {
	var req models.StorePredictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.validationError(w, "invalid JSON body", models.StorePredictionRequiredFields)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.validationError(w, "missing required fields", models.StorePredictionRequiredFields)
		return
	}

	ctx := r.Context()
	rec := &models.PredictionRecord{
		ID:                uuid.NewString(),
		FixtureID:         req.FixtureID,
		HomeTeam:          req.HomeTeam,
		AwayTeam:          req.AwayTeam,
		League:            req.League,
		MatchDate:         req.MatchDate.UTC(),
		ModelVersion:      valueOr(req.ModelVersion, h.modelVersion),
		DataVersion:       valueOr(req.DataVersion, h.dataVersion),
		Prediction:        *req.Prediction,
		CreatedAt:         h.now().UTC(),
		ClientFingerprint: req.ClientFingerprint,
	}
	rec.IntegrityHash = logic.IntegrityHash(rec)

	// Put refuses to replace a verified record with a conflict
	if err := h.predictions.Put(ctx, rec); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Infow("Stored prediction", "fixtureId", rec.FixtureID, "predictionId", rec.ID, "key", rec.Key().String())
	h.jsonResponse(w, http.StatusCreated, models.StorePredictionResponse{
		PredictionID:  rec.ID,
		IntegrityHash: rec.IntegrityHash,
	})
}

// VerifyPrediction handles PUT /predictions
// @Summary Verify Prediction
// @Tags Predictions
// @Accept json
// @Produce json
// @Param body body models.VerifyPredictionRequest true "Actual result"
// @Success 200 {object} models.VerifyPredictionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "Already verified"
// @Router /predictions [put]
func (h *Handler) VerifyPrediction(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPredictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.validationError(w, "invalid JSON body", models.VerifyPredictionRequiredFields)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.validationError(w, "missing required fields", models.VerifyPredictionRequiredFields)
		return
	}
	if req.ActualResult.HomeScore < 0 || req.ActualResult.AwayScore < 0 {
		h.errorResponse(w, http.StatusBadRequest, logic.KindValidation, "scores must not be negative")
		return
	}
	if h.verification == nil {
		h.errorResponse(w, http.StatusInternalServerError, logic.KindConfig, "verification is not configured")
		return
	}

	rec, err := h.verification.Verify(r.Context(), req.FixtureID, *req.ActualResult, req.Source)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.jsonResponse(w, http.StatusOK, models.VerifyPredictionResponse{
		PredictionID: rec.ID,
		Accuracy:     rec.Accuracy,
	})
}

// GetPredictions handles GET /predictions with one of fixtureId, date or stats=true
// @Summary Query Predictions
// @Tags Predictions
// @Produce json
// @Param fixtureId query int false "Fixture ID"
// @Param date query string false "Kickoff date (YYYY-MM-DD, UTC)"
// @Param stats query bool false "Aggregate accuracy statistics"
// @Success 200 {object} interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /predictions [get]
func (h *Handler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	switch {
	case q.Get("fixtureId") != "":
		id, err := models.ParseFixtureID(q.Get("fixtureId"))
		if err != nil {
			h.errorResponse(w, http.StatusBadRequest, logic.KindValidation, "fixtureId must be numeric")
			return
		}
		lk, err := h.predictions.GetLatest(ctx, id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !lk.Found() {
			h.errorResponse(w, http.StatusNotFound, logic.KindNotFound, "no prediction for fixture "+id.String())
			return
		}
		h.jsonResponse(w, http.StatusOK, lk.Record)

	case q.Get("date") != "":
		date, err := time.Parse("2006-01-02", q.Get("date"))
		if err != nil {
			h.errorResponse(w, http.StatusBadRequest, logic.KindValidation, "date must be YYYY-MM-DD")
			return
		}
		records, err := h.predictions.GetByDate(ctx, date)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.jsonResponse(w, http.StatusOK, models.DatePredictionsResponse{
			Predictions: records,
			Date:        date.Format("2006-01-02"),
			Count:       len(records),
		})

	case q.Get("stats") == "true":
		if h.verification == nil {
			h.errorResponse(w, http.StatusInternalServerError, logic.KindConfig, "verification is not configured")
			return
		}
		stats, err := h.verification.Stats(ctx)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.jsonResponse(w, http.StatusOK, stats)

	default:
		h.errorResponse(w, http.StatusBadRequest, logic.KindValidation, "one of fixtureId, date or stats=true is required")
	}
}

// GetFreshPrediction handles GET /predictions/{fixtureId}. It never fails on
// a miss: the body carries null predictions and stale=true instead.
// @Summary Freshness-aware Prediction Read
// @Tags Predictions
// @Produce json
// @Param fixtureId path int true "Fixture ID"
// @Param model_version query string false "Model version"
// @Param data_version query string false "Data version"
// @Param league_id query string false "League ID (echoed)"
// @Param season query string false "Season (echoed)"
// @Param fixture_ts query int false "Kickoff, unix seconds or milliseconds"
// @Param pre_ttl query int false "Pre-kickoff TTL in minutes"
// @Param max_stale query int false "Max staleness in minutes"
// @Success 200 {object} models.FreshPredictionResponse
// @Router /predictions/{fixtureId} [get]
func (h *Handler) GetFreshPrediction(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseFixtureID(chi.URLParam(r, "fixtureId"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, logic.KindValidation, "fixtureId must be numeric")
		return
	}

	q := r.URL.Query()
	key := models.CacheKey{
		FixtureID:    id,
		ModelVersion: valueOr(q.Get("model_version"), h.modelVersion),
		DataVersion:  valueOr(q.Get("data_version"), h.dataVersion),
	}
	preTTL := minutesParam(q.Get("pre_ttl"), h.preKickoffTTL)
	maxStale := minutesParam(q.Get("max_stale"), h.maxStaleness)

	meta := models.FreshnessMeta{
		CacheKey:     key.String(),
		ModelVersion: key.ModelVersion,
		DataVersion:  key.DataVersion,
		Stale:        true,
		Source:       logic.SourceMiss,
		LeagueID:     q.Get("league_id"),
		Season:       q.Get("season"),
	}

	lk, err := h.predictions.Get(r.Context(), key)
	if err != nil {
		// Degrade to "no data yet" rather than failing the page
		h.logger.Errorw("Freshness read failed", "fixtureId", id, "key", key.String(), "error", err)
		h.jsonResponse(w, http.StatusOK, models.FreshPredictionResponse{Meta: meta})
		return
	}
	if !lk.Found() {
		h.jsonResponse(w, http.StatusOK, models.FreshPredictionResponse{Meta: meta})
		return
	}

	rec := lk.Record
	kickoff := rec.MatchDate
	if ts, ok := epochParam(q.Get("fixture_ts")); ok {
		kickoff = ts
	}

	var lastUpdated *time.Time
	if !rec.CreatedAt.IsZero() {
		t := rec.CreatedAt
		lastUpdated = &t
	}
	meta.LastUpdated = lastUpdated
	meta.Source = lk.Source
	meta.Stale = logic.IsStale(h.now(), rec.CreatedAt, kickoff, preTTL, maxStale)

	resp := models.FreshPredictionResponse{
		NumericPredictions: &rec.Prediction,
		Meta:               meta,
	}
	if rec.Prediction.ConfidenceReason != "" {
		notes := rec.Prediction.ConfidenceReason
		resp.ReasoningNotes = &notes
	}
	h.jsonResponse(w, http.StatusOK, resp)
}

// GeneratePrediction handles POST /predictions/{fixtureId}/generate
// @Summary Generate Prediction
// @Tags Predictions
// @Accept json
// @Produce json
// @Security APIKey
// @Param fixtureId path int true "Fixture ID"
// @Param body body models.GenerateRequest true "Fixture"
// @Success 201 {object} models.PredictionRecord
// @Failure 409 {object} map[string]string "Generation already in progress"
// @Failure 504 {object} map[string]string "Generation timed out"
// @Router /predictions/{fixtureId}/generate [post]
func (h *Handler) GeneratePrediction(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseFixtureID(chi.URLParam(r, "fixtureId"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, logic.KindValidation, "fixtureId must be numeric")
		return
	}
	if h.generation == nil {
		h.errorResponse(w, http.StatusInternalServerError, logic.KindConfig, "generation is not configured")
		return
	}

	var req models.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, logic.KindValidation, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, logic.KindValidation, err.Error())
		return
	}

	rec, err := h.generation.Generate(r.Context(), models.Fixture{
		ID:         id,
		HomeTeamID: req.HomeTeamID,
		AwayTeamID: req.AwayTeamID,
		HomeTeam:   req.HomeTeam,
		AwayTeam:   req.AwayTeam,
		LeagueID:   req.LeagueID,
		League:     req.League,
		Season:     req.Season,
		Kickoff:    req.Kickoff,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusCreated, rec)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// minutesParam parses a whole number of minutes, falling back on bad input
func minutesParam(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Minute
}

// epochParam accepts unix seconds or milliseconds
func epochParam(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
