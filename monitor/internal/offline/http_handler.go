package offline

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Krimson/ctg-stream/monitor/internal/csvreader"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/Krimson/ctg-stream/monitor/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxUploadMemory = 32 << 20

// HTTPHandler принимает записи для разбора целиком
type HTTPHandler struct {
	analyzer *Analyzer
	logger   *zap.Logger
}

func NewHTTPHandler(analyzer *Analyzer, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{analyzer: analyzer, logger: logger}
}

// RegisterRoutes регистрирует маршруты
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/analyze", h.Analyze).Methods("POST")
}

// Analyze разбирает загруженную запись
// @Summary Разобрать CSV запись
// @Description Принимает один файл time_sec,fhr,uc или пару файлов bpm_file и uc_file (time,value), прогоняет запись через конвейер и возвращает последний снимок, итоги и события
// @Tags Offline Analysis
// @Accept multipart/form-data
// @Produce json
// @Param file formData file false "CSV с колонками time_sec,fhr,uc"
// @Param bpm_file formData file false "CSV с данными FHR"
// @Param uc_file formData file false "CSV с данными UC"
// @Param session_id formData string false "ID сессии (генерируется автоматически если не указан)"
// @Param save formData bool false "Сохранить результат в архив"
// @Param patient_id formData string false "ID пациентки"
// @Success 200 {object} Report
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/analyze [post]
func (h *HTTPHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	samples, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	report, err := h.analyzer.Analyze(r.Context(), sessionID, samples)
	if err != nil {
		if errors.Is(err, ErrNoSamples) || errors.Is(err, ErrRecordingTooLong) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("offline analysis failed", zap.String("session_id", sessionID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if save, _ := strconv.ParseBool(r.FormValue("save")); save {
		meta := session.Metadata{PatientID: r.FormValue("patient_id"), Notes: r.FormValue("notes")}
		if err := h.analyzer.Save(r.Context(), report, meta); err != nil {
			h.logger.Error("failed to archive offline analysis", zap.String("session_id", sessionID), zap.Error(err))
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	respondJSON(w, http.StatusOK, report)
}

// readUpload читает либо единый файл, либо пару FHR/UC
func readUpload(r *http.Request) ([]pipeline.Sample, error) {
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		return csvreader.Read(file)
	}

	bpm, err := formSeries(r, "bpm_file")
	if err != nil {
		return nil, err
	}
	uc, err := formSeries(r, "uc_file")
	if err != nil {
		return nil, err
	}
	if bpm == nil && uc == nil {
		return nil, errors.New("either file or bpm_file/uc_file is required")
	}
	return csvreader.Merge(bpm, uc), nil
}

func formSeries(r *http.Request, field string) ([]csvreader.DataPoint, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readSeries(file, field)
}

func readSeries(r io.Reader, field string) ([]csvreader.DataPoint, error) {
	points, err := csvreader.ReadSeries(r)
	if err != nil {
		return nil, errors.New(field + ": " + err.Error())
	}
	return points, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":  message,
		"status": status,
	})
}
