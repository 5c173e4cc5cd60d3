package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/refx-online/omajinai/internal/domain/model"
	"github.com/refx-online/omajinai/pkg/logger"
)

// CalculateHandler serves the on-demand calculation path.
type CalculateHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewCalculateHandler creates a new calculate handler.
func NewCalculateHandler(deps Dependencies) *CalculateHandler {
	return &CalculateHandler{
		deps:   deps,
		logger: logger.Get().Named("api"),
	}
}

// HandleCalculate handles GET /api/calculate requests. The request is
// described by query parameters; the response carries the computed
// attributes or the first error, never a partial result.
func (h *CalculateHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, nil)
		return
	}

	req, err := parseCalculateQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.deps.Calculate(r.Context(), req)
	if err != nil {
		h.logger.Error(r.Context(), "performance calculation failed",
			logger.Int64("beatmap_id", req.BeatmapID),
			logger.Error(err),
		)
		writeError(w, statusFor(err), err)
		return
	}

	writeSuccess(w, result)
}

// parseCalculateQuery builds a CalculationRequest from query parameters.
// Absent optional parameters stay nil so the engine defaults them.
func parseCalculateQuery(q url.Values) (*model.CalculationRequest, error) {
	req := &model.CalculationRequest{
		Mods: q.Get("mods"),
	}

	var err error
	if req.BeatmapID, err = parseInt64Param(q, "beatmap_id"); err != nil {
		return nil, err
	}

	mode, err := parseIntParam(q, "mode")
	if err != nil {
		return nil, err
	}
	req.Mode = mode

	if raw := q.Get("accuracy"); raw != "" {
		if req.Accuracy, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, fmt.Errorf("invalid accuracy: %q", raw)
		}
	}

	if req.MaxCombo, err = parseOptIntParam(q, "max_combo"); err != nil {
		return nil, err
	}
	if req.Misses, err = parseOptIntParam(q, "miss_count"); err != nil {
		return nil, err
	}
	if req.PassedObjects, err = parseOptIntParam(q, "passed_objects"); err != nil {
		return nil, err
	}

	if raw := q.Get("legacy_score"); raw != "" {
		score, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid legacy_score: %q", raw)
		}
		req.LegacyScore = &score
	}

	if raw := q.Get("new_format"); raw != "" {
		newFormat, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid new_format: %q", raw)
		}
		req.NewFormat = &newFormat
	}

	return req, nil
}

func parseIntParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func parseInt64Param(q url.Values, name string) (int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func parseOptIntParam(q url.Values, name string) (*int, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return &v, nil
}
