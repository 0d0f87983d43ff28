package http

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gridguard/app"
	"gridguard/db"
	"gridguard/ml"
	"gridguard/monitoring"
	"gridguard/pipeline"
)

// DownloadFilename 批量结果下载文件名
const DownloadFilename = "transformer_predictions.csv"

//go:embed templates/*.html static/*
var dashboardFiles embed.FS

var dashboardTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"percent": ml.Percent,
}).ParseFS(dashboardFiles, "templates/*.html"))

var dashboardStatic = mustSub(dashboardFiles, "static")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("dashboard assets %s: %v", dir, err))
	}
	return sub
}

func RegisterDashboardRoutes(mux *http.ServeMux, a *app.App) {
	mux.HandleFunc("GET /dashboard", handleDashboard(a))
	mux.HandleFunc("POST /dashboard/predict", handleDashboardPredict(a))
	mux.HandleFunc("POST /dashboard/batch", handleDashboardBatch(a))
	mux.HandleFunc("GET /dashboard/batch/{id}/download", handleDashboardDownload(a))
	mux.Handle("GET /dashboard/static/", http.StripPrefix("/dashboard/static/", http.FileServer(http.FS(dashboardStatic))))
	mux.HandleFunc("GET /api/ws/dashboard", a.Hub.HandleWebSocket)
}

type dashboardPage struct {
	ModelLoaded bool
	ModelError  string
	ModelPath   string
	Metrics     ml.Metrics
	Slots       []pipeline.Slot
	Batches     []db.Batch
	Trainings   []db.TrainingLog
	Error       string
}

type singleResultPage struct {
	Prediction ml.Prediction
	Record     pipeline.RawRecord
	Warnings   []string
}

type batchResultPage struct {
	ID          string
	Filename    string
	Result      *ml.BatchResult
	Warnings    []string
	Stats       pipeline.CleaningStats
	Header      []string
	Rows        [][]string
	DownloadURL string
}

func handleDashboard(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, a, http.StatusOK, "dashboard.html", overview(a, nil))
	}
}

func overview(a *app.App, failure error) dashboardPage {
	page := dashboardPage{ModelPath: a.Models.Path()}
	model, err := a.Invoker.Model()
	if err != nil {
		page.ModelError = err.Error()
	} else {
		page.ModelLoaded = true
		page.Metrics = model.Metrics()
		page.Slots = model.Schema().Slots
	}
	if failure != nil {
		page.Error = failure.Error()
	}
	if a.Store != nil {
		var err error
		if page.Batches, err = a.Store.RecentBatches(10); err != nil {
			a.Log.Warnw("failed to load recent batches", "error", err)
		}
		if page.Trainings, err = a.Store.LoadTrainingLog(5); err != nil {
			a.Log.Warnw("failed to load training log", "error", err)
		}
	}
	return page
}

// handleDashboardPredict 单条预测：表单字段按模型特征名提交，未提交的特征取默认值
func handleDashboardPredict(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model, err := a.Invoker.Model()
		if err != nil {
			renderPage(w, a, statusFor(err), "dashboard.html", overview(a, err))
			return
		}
		if err := r.ParseForm(); err != nil {
			err = fmt.Errorf("%w: %v", ml.ErrInvalidInput, err)
			renderPage(w, a, statusFor(err), "dashboard.html", overview(a, err))
			return
		}

		record := pipeline.RawRecord{}
		for _, slot := range model.Schema().Slots {
			if values, ok := r.PostForm[slot.Name]; ok && len(values) > 0 {
				record[slot.Name] = values[0]
			}
		}
		prediction, report, err := a.Invoker.PredictRecord(record)
		if err != nil {
			renderPage(w, a, statusFor(err), "dashboard.html", overview(a, err))
			return
		}
		recordPredictions(a, r, "dashboard", []ml.Prediction{prediction}, report)
		renderPage(w, a, http.StatusOK, "result.html", singleResultPage{
			Prediction: prediction,
			Record:     record,
			Warnings:   report.Warnings(),
		})
	}
}

func handleDashboardBatch(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := scoreUpload(a, r)
		if err != nil {
			a.Log.Warnw("batch scoring failed", "request_id", GetRequestID(r.Context()), "error", err)
			renderPage(w, a, statusFor(err), "dashboard.html", overview(a, err))
			return
		}
		renderPage(w, a, http.StatusOK, "batch.html", page)
	}
}

func scoreUpload(a *app.App, r *http.Request) (*batchResultPage, error) {
	model, err := a.Invoker.Model()
	if err != nil {
		return nil, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: upload a CSV file in the %q field: %v", ml.ErrInvalidInput, "file", err)
	}
	defer file.Close()

	table, err := pipeline.ReadTable(file)
	if err != nil {
		return nil, err
	}
	result, err := ml.ScoreTable(model, table)
	if err != nil {
		return nil, err
	}

	var annotated bytes.Buffer
	if err := table.Write(&annotated); err != nil {
		return nil, fmt.Errorf("encode annotated table: %w", err)
	}

	id := uuid.NewString()
	name := filepath.Base(header.Filename)
	a.Downloads.Add(id, app.Download{Filename: DownloadFilename, Body: annotated.Bytes(), Created: time.Now()})

	recordPredictions(a, r, "batch", result.Predictions, result.Report)
	fallbacks := result.Report.FallbackCounts()
	stats := result.Report.Stats()
	if a.Store != nil {
		err := a.Store.SaveBatch(db.Batch{
			ID:            id,
			Filename:      name,
			Rows:          len(table.Rows),
			Healthy:       result.Healthy,
			Failures:      result.Failures,
			FilledColumns: result.Report.Filled,
			Fallbacks:     int(stats.Issues[pipeline.IssueCoercionFallback]),
			ScoredAt:      time.Now(),
		})
		if err != nil {
			a.Log.Warnw("failed to record batch", "batch_id", id, "error", err)
		}
	}
	if err := a.Hub.Publish(monitoring.BatchScored, monitoring.BatchMessage{
		BatchID:   id,
		Filename:  name,
		Rows:      len(table.Rows),
		Healthy:   result.Healthy,
		Failures:  result.Failures,
		Filled:    result.Report.Filled,
		Fallbacks: fallbacks,
	}); err != nil {
		a.Log.Warnw("failed to publish batch event", "error", err)
	}
	a.Log.Infow("batch scored", "batch_id", id, "file", name, "rows", len(table.Rows), "failures", result.Failures, "filled", result.Report.Filled, "corrected_rows", stats.Corrected)

	return &batchResultPage{
		ID:          id,
		Filename:    name,
		Result:      result,
		Warnings:    result.Report.Warnings(),
		Stats:       stats,
		Header:      table.Header,
		Rows:        table.Rows,
		DownloadURL: "/dashboard/batch/" + id + "/download",
	}, nil
}

func handleDashboardDownload(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		download, ok := a.Downloads.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "batch result not found or expired", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
		http.ServeContent(w, r, download.Filename, download.Created, bytes.NewReader(download.Body))
	}
}

func renderPage(w http.ResponseWriter, a *app.App, status int, name string, data any) {
	var buf bytes.Buffer
	if err := dashboardTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		a.Log.Errorw("template rendering failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
