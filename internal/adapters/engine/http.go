package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/refx-online/omajinai/internal/domain/beatmap"
	"github.com/refx-online/omajinai/internal/domain/mods"
)

const defaultTimeout = 30 * time.Second

// HTTPEngine invokes a difficulty-calculator sidecar over HTTP. The sidecar
// receives the raw chart bytes plus the play spec and returns the computed
// attributes.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
}

// HTTPOption applies a configuration option to the HTTPEngine.
type HTTPOption func(*HTTPEngine)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPEngine) {
		if client != nil {
			e.client = client
		}
	}
}

// NewHTTPEngine creates an engine client for the calculator at baseURL.
func NewHTTPEngine(baseURL string, opts ...HTTPOption) *HTTPEngine {
	e := &HTTPEngine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// calculateRequest mirrors the calculator's wire schema.
type calculateRequest struct {
	Beatmap          []byte          `json:"beatmap"`
	Mode             int             `json:"mode"`
	NewFormat        bool            `json:"new_format"`
	Mods             json.RawMessage `json:"mods,omitempty"`
	Accuracy         *float64        `json:"accuracy,omitempty"`
	Combo            *int            `json:"combo,omitempty"`
	Misses           *int            `json:"misses,omitempty"`
	PassedObjects    *int            `json:"passed_objects,omitempty"`
	LegacyTotalScore *int64          `json:"legacy_total_score,omitempty"`
	N300             *int            `json:"n300,omitempty"`
	N100             *int            `json:"n100,omitempty"`
	N50              *int            `json:"n50,omitempty"`
	Geki             *int            `json:"ngeki,omitempty"`
	Katu             *int            `json:"nkatu,omitempty"`
}

// Calculate implements Engine.
func (e *HTTPEngine) Calculate(ctx context.Context, bm *beatmap.Beatmap, spec Spec) (Attributes, error) {
	wire := calculateRequest{
		Beatmap:          bm.Raw(),
		Mode:             spec.Mode,
		NewFormat:        spec.NewFormat,
		Accuracy:         spec.Accuracy,
		Combo:            spec.Combo,
		Misses:           spec.Misses,
		PassedObjects:    spec.PassedObjects,
		LegacyTotalScore: spec.LegacyTotalScore,
		N300:             spec.N300,
		N100:             spec.N100,
		N50:              spec.N50,
		Geki:             spec.Geki,
		Katu:             spec.Katu,
	}

	encoded, err := encodeMods(spec.Mods, spec.NewFormat)
	if err != nil {
		return Attributes{}, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}
	wire.Mods = encoded

	body, err := json.Marshal(wire)
	if err != nil {
		return Attributes{}, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/calculate", bytes.NewReader(body))
	if err != nil {
		return Attributes{}, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Attributes{}, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return Attributes{}, fmt.Errorf("%w: mode %d", ErrUnsupportedMode, spec.Mode)
	case resp.StatusCode != http.StatusOK:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Attributes{}, fmt.Errorf("%w: status %d: %s", ErrEngineFailure, resp.StatusCode, payload)
	}

	var attrs Attributes
	if err := json.NewDecoder(resp.Body).Decode(&attrs); err != nil {
		return Attributes{}, fmt.Errorf("%w: decoding attributes: %v", ErrEngineFailure, err)
	}

	return attrs, nil
}

// encodeMods serializes the normalized mod representation for the wire. A
// legacy bitmask travels as a bare number under the legacy format and as a
// tagged object under the new format; the other variants keep their shape.
func encodeMods(m mods.GameMods, newFormat bool) (json.RawMessage, error) {
	if m == nil {
		return nil, nil
	}

	switch v := m.(type) {
	case mods.Legacy:
		if !newFormat {
			return json.Marshal(int(v))
		}
		return json.Marshal(map[string]int{"legacy": int(v)})
	case mods.Intermode:
		return json.Marshal([]string(v))
	case mods.Lazer:
		return json.Marshal([]mods.Mod(v))
	default:
		return nil, fmt.Errorf("unhandled mod representation %T", m)
	}
}
