package api

import (
	"net/http"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/pkg/models"
)

// ConfigView is the running configuration with every secret removed.
type ConfigView struct {
	Scan    ScanView           `json:"scan"`
	Indices []models.IndexSpec `json:"indices"`
	LLM     LLMView            `json:"llm"`
}

// ScanView mirrors config.ScanConfig.
type ScanView struct {
	Exclusions       []string                `json:"exclusions"`
	MinChangePercent float64                 `json:"min_change_percent"`
	TopN             int                     `json:"top_n"`
	RequestDelay     string                  `json:"request_delay"`
	FallbackSector   string                  `json:"fallback_sector"`
	MergePolicy      string                  `json:"merge_policy"`
	Rules            []config.RuleConfig     `json:"rules"`
	Overrides        []config.OverrideConfig `json:"overrides"`
}

// LLMView is the provider setup without keys.
type LLMView struct {
	Primary       string  `json:"primary"`
	Model         string  `json:"model"`
	GeminiModel   string  `json:"gemini_model"`
	ClaudeModel   string  `json:"claude_model"`
	Temperature   float64 `json:"temperature"`
	RefineEnabled bool    `json:"refine_enabled"`
}

// handleGetConfig returns the current (running) configuration.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "no configuration loaded")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    newConfigView(s.cfg, s.pipeline != nil && s.pipeline.CanRefine()),
	})
}

// handleGetConfigKeys returns the status of all model provider keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "no configuration loaded")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

func newConfigView(cfg *config.Config, refine bool) ConfigView {
	sc := cfg.Scan
	return ConfigView{
		Scan: ScanView{
			Exclusions:       sc.Exclusions,
			MinChangePercent: sc.MinChangePercent,
			TopN:             sc.TopN,
			RequestDelay:     sc.RequestDelay.String(),
			FallbackSector:   sc.FallbackSector,
			MergePolicy:      sc.MergePolicy,
			Rules:            sc.Rules,
			Overrides:        sc.Overrides,
		},
		Indices: cfg.Indices,
		LLM: LLMView{
			Primary:       cfg.LLM.Primary,
			Model:         cfg.LLM.Model,
			GeminiModel:   cfg.LLM.GeminiModel,
			ClaudeModel:   cfg.LLM.ClaudeModel,
			Temperature:   cfg.LLM.Temperature,
			RefineEnabled: refine,
		},
	}
}
