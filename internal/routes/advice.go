package routes

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
	"github.com/CyberwizD/smart-agro-advisor/internal/services"
)

const missingDiseaseAdvice = "Unable to generate advice due to missing disease information."

var allowedImageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

type adviceResponse struct {
	Status  string      `json:"status"`
	Crop    string      `json:"crop"`
	City    string      `json:"city"`
	Weather interface{} `json:"weather"`
	Disease interface{} `json:"disease"`
	Advice  []string    `json:"advice"`
}

type diagnosisSection struct {
	models.Diagnosis
	Error string `json:"error,omitempty"`
}

// Advice classifies an uploaded leaf image and combines it with the city's weather.
// Each section of the response is filled independently of the others.
func (h *Handler) Advice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	if err := r.ParseMultipartForm(h.maxUpload()); err != nil {
		writeError(w, http.StatusBadRequest, "Image and city are required")
		return
	}
	city := strings.TrimSpace(r.FormValue("city"))
	image, filename, err := readImage(r)
	if err != nil || city == "" {
		writeError(w, http.StatusBadRequest, "Image and city are required")
		return
	}

	ctx := r.Context()
	req := services.AdviceRequest{
		Image:    image,
		Filename: filename,
		City:     city,
		Country:  strings.TrimSpace(r.FormValue("country")),
	}
	advisory, err := h.Advisor.Advise(ctx, req)

	resp := adviceResponse{Status: "success", City: city}
	switch {
	case err == nil:
		fillAdvisory(&resp, advisory)
		resp.Advice = advisory.Advice
	case services.KindOf(err) == services.KindAdvisoryGenerationFailure && advisory != nil:
		h.Logger.Warn("advice generation failed", slog.Any("error", err))
		fillAdvisory(&resp, advisory)
		resp.Advice = []string{fmt.Sprintf("Advice generation failed: %s", causeText(err))}
	case services.KindOf(err) == services.KindClassificationFailure:
		h.Logger.Warn("disease prediction failed", slog.Any("error", err))
		resp.Crop = models.UnknownCrop
		resp.Disease = diagnosisSection{
			Diagnosis: models.Diagnosis{Label: models.UnknownLabel},
			Error:     causeText(err),
		}
		resp.Weather = h.weatherSection(r, req.City, req.Country)
		resp.Advice = []string{missingDiseaseAdvice}
	default:
		h.Logger.Error("advice request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func fillAdvisory(resp *adviceResponse, a *models.Advisory) {
	resp.Crop = a.Crop
	resp.Disease = diagnosisSection{Diagnosis: a.Diagnosis}
	if a.Weather != nil {
		resp.Weather = a.Weather
	} else {
		resp.Weather = map[string]string{"error": a.WeatherError}
	}
}

func (h *Handler) weatherSection(r *http.Request, city, country string) interface{} {
	if country == "" {
		country = h.DefaultCountry
	}
	weather, err := h.Weather.Current(r.Context(), city, country)
	if err != nil {
		return map[string]string{"error": err.Error()}
	}
	return weather
}

type diagnoseResponse struct {
	Status     string            `json:"status"`
	Filename   string            `json:"filename"`
	Prediction diagnosePrediction `json:"prediction"`
}

type diagnosePrediction struct {
	PredictedLabel  string             `json:"predicted_label"`
	Confidence      float64            `json:"confidence"`
	Probabilities   map[string]float64 `json:"probabilities"`
	TreatmentAdvice string             `json:"treatment_advice"`
}

// Diagnose classifies an uploaded image and attaches the stored treatment advice.
func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	if err := r.ParseMultipartForm(h.maxUpload()); err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if header.Filename == "" || filename == "." || filename == "/" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !allowedImageExt[strings.ToLower(filepath.Ext(filename))] {
		writeError(w, http.StatusBadRequest, "Invalid file format. Allowed: PNG, JPG, JPEG")
		return
	}
	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read image")
		return
	}
	h.Logger.Info("image received", slog.String("filename", filename), slog.Int("bytes", len(image)))

	diagnosis, err := h.Classifier.Classify(r.Context(), image, filename)
	if err != nil {
		h.Logger.Error("diagnosis failed", slog.Any("error", err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	probabilities := diagnosis.Probabilities
	if probabilities == nil {
		probabilities = map[string]float64{}
	}
	writeJSON(w, http.StatusOK, diagnoseResponse{
		Status:   "success",
		Filename: filename,
		Prediction: diagnosePrediction{
			PredictedLabel:  diagnosis.Label,
			Confidence:      math.Round(diagnosis.Confidence*1000) / 1000,
			Probabilities:   probabilities,
			TreatmentAdvice: h.Rules.Treatment(diagnosis.Label),
		},
	})
}

func readImage(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}
	return data, filepath.Base(header.Filename), nil
}

// causeText reports the underlying failure without the pipeline prefix.
func causeText(err error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return cause.Error()
	}
	return err.Error()
}
