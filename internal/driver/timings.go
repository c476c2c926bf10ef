package driver

import (
	"encoding/json"
	"fmt"

	"qualflow/internal/diag"
	"qualflow/internal/observ"
	"qualflow/internal/source"
)

type timingPayload struct {
	Kind     string                 `json:"kind"`
	Path     string                 `json:"path,omitempty"`
	TotalMS  float64                `json:"total_ms"`
	Phases   []observ.PhaseReport   `json:"phases"`
	Counters []observ.CounterReport `json:"counters,omitempty"`
}

func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "check"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)
	if payload.Path != "" {
		msg = fmt.Sprintf("%s, %s", msg, payload.Path)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	entry := diag.Diagnostic{
		Severity: diag.SevInfo,
		Code:     diag.ObsTimings,
		Message:  msg,
		Primary:  source.Span{},
		Notes: []diag.Note{
			{Span: source.Span{}, Msg: string(data)},
		},
	}

	bag.Add(entry)
}
