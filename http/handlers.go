package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"gridguard/app"
	"gridguard/db"
	"gridguard/ml"
	"gridguard/monitoring"
	"gridguard/pipeline"
)

func RegisterHandlers(mux *http.ServeMux, a *app.App) {
	guarded := AuthMiddleware(a.Guard, a.Log, a.Metrics)

	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("GET /health", handleHealth(a))
	mux.Handle("GET /metrics", a.Metrics.Handler())
	mux.Handle("GET /api/schema", guarded(handleSchema(a)))
	mux.Handle("POST /predict", guarded(handlePredict(a)))
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Transformer Failure Prediction API is running!")
}

// handleHealth 始终返回200，即使模型加载失败
func handleHealth(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{"status": "ok", "model_loaded": a.Models.Loaded()})
	}
}

type schemaResponse struct {
	Classifier string                  `json:"classifier"`
	Features   []pipeline.Slot         `json:"features"`
	Target     pipeline.TargetEncoding `json:"target"`
	Metrics    ml.Metrics              `json:"metrics"`
}

func handleSchema(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model, err := a.Invoker.Model()
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, schemaResponse{
			Classifier: model.Name(),
			Features:   model.Schema().Slots,
			Target:     model.Target(),
			Metrics:    model.Metrics(),
		})
	}
}

type predictRequest struct {
	Input json.RawMessage `json:"input"`
	// Kind optionally declares "record" or "batch".
	Kind               string `json:"kind"`
	IncludeProbability bool   `json:"include_probability"`
}

type predictResponse struct {
	Prediction  []int     `json:"prediction"`
	Probability []float64 `json:"probability,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
}

func handlePredict(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, r, err)
				return
			}
			writeError(w, r, fmt.Errorf("%w: malformed request body: %v", ml.ErrInvalidInput, err))
			return
		}
		in, err := ml.ParseInput(req.Input, req.Kind)
		if err != nil {
			writeError(w, r, err)
			return
		}

		result, err := a.Invoker.Predict(in)
		if err != nil {
			a.Log.Warnw("prediction failed", "request_id", GetRequestID(r.Context()), "error", err)
			writeError(w, r, err)
			return
		}

		resp := predictResponse{Prediction: make([]int, len(result.Predictions)), Warnings: result.Report.Warnings()}
		for i, p := range result.Predictions {
			resp.Prediction[i] = p.Label
			if p.LabelName != "" {
				resp.Labels = append(resp.Labels, p.LabelName)
			}
			if req.IncludeProbability && p.Probability != nil {
				resp.Probability = append(resp.Probability, *p.Probability)
			}
		}
		recordPredictions(a, r, "api", result.Predictions, result.Report)
		render.JSON(w, r, resp)
	}
}

// recordPredictions 记录指标、审计日志并推送仪表盘事件
func recordPredictions(a *app.App, r *http.Request, source string, predictions []ml.Prediction, report pipeline.Report) {
	requestID := GetRequestID(r.Context())
	var failures int
	rows := make([]db.Prediction, len(predictions))
	for i, p := range predictions {
		rows[i] = db.Prediction{Label: p.Label, Probability: p.Probability}
		if p.Failure {
			failures++
		}
	}
	a.Metrics.ObserveReport(report)
	a.Metrics.ObservePredictions(source, len(predictions)-failures, failures)

	if a.Store != nil {
		if err := a.Store.SavePredictions(requestID, source, rows); err != nil {
			a.Log.Warnw("failed to record predictions", "request_id", requestID, "error", err)
		}
	}

	event := monitoring.PredictionMessage{RequestID: requestID, Source: source, Records: len(predictions), Failures: failures}
	if len(predictions) == 1 {
		event.Probability = predictions[0].Probability
	}
	if err := a.Hub.Publish(monitoring.PredictionEvent, event); err != nil {
		a.Log.Warnw("failed to publish prediction event", "error", err)
	}
}
