package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/matchcast/predictions-api/internal/logic"
	"github.com/matchcast/predictions-api/internal/models"
)

// GetAccuracyReport handles GET /predictions/analytics
// @Summary Accuracy Breakdown
// @Description Hit rate of one market from the ClickHouse accuracy projection, grouped by a dimension
// @Tags Predictions
// @Produce json
// @Param dimension query string false "league, model_version, confidence, source or month"
// @Param market query string false "outcome (default), scoreline, btts, goalLine or cleanSheet"
// @Param league query string false "League filter"
// @Param model_version query string false "Model version filter"
// @Param from query string false "Match date lower bound (YYYY-MM-DD)"
// @Param to query string false "Match date upper bound, exclusive (YYYY-MM-DD)"
// @Param limit query int false "Row limit (default 100)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /predictions/analytics [get]
func (h *Handler) GetAccuracyReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		h.errorResponse(w, http.StatusInternalServerError, logic.KindConfig, "analytics store is not configured: set CLICKHOUSE_URL")
		return
	}

	q := r.URL.Query()
	req := logic.AccuracyQuery{
		Dimension:    q.Get("dimension"),
		Market:       q.Get("market"),
		League:       q.Get("league"),
		ModelVersion: q.Get("model_version"),
	}
	if v := q.Get("limit"); v != "" {
		req.Limit, _ = strconv.Atoi(v)
	}
	for name, dst := range map[string]*time.Time{"from": &req.From, "to": &req.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			h.errorResponse(w, http.StatusBadRequest, logic.KindValidation, name+" must be YYYY-MM-DD")
			return
		}
		*dst = t
	}

	rows, err := h.reports.Breakdown(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.AccuracyBreakdownRow{}
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rows":  rows,
		"count": len(rows),
	})
}
