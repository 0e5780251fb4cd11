package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
	"github.com/CyberwizD/smart-agro-advisor/internal/services"
	"github.com/CyberwizD/smart-agro-advisor/pkg/metrics"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []models.InboundMessage
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg models.InboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return d.err
}

type memoryDedup struct {
	seen map[string]bool
	err  error
}

func (m *memoryDedup) FirstSeen(_ context.Context, id string, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

type stubAdvisor struct {
	advisory *models.Advisory
	err      error
	req      services.AdviceRequest
}

func (s *stubAdvisor) Advise(_ context.Context, req services.AdviceRequest) (*models.Advisory, error) {
	s.req = req
	return s.advisory, s.err
}

type stubClassifier struct {
	diagnosis *models.Diagnosis
	err       error
	filename  string
}

func (s *stubClassifier) Classify(_ context.Context, _ []byte, filename string) (*models.Diagnosis, error) {
	s.filename = filename
	return s.diagnosis, s.err
}

type stubWeather struct {
	weather *models.Weather
	err     error
	city    string
	country string
}

func (s *stubWeather) Current(_ context.Context, city, country string) (*models.Weather, error) {
	s.city, s.country = city, country
	return s.weather, s.err
}

type fixture struct {
	dispatcher *recordingDispatcher
	dedup      *memoryDedup
	advisor    *stubAdvisor
	classifier *stubClassifier
	weather    *stubWeather
	metrics    *metrics.Metrics
	router     http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rules, err := services.LoadRuleSet("")
	require.NoError(t, err)

	f := &fixture{
		dispatcher: &recordingDispatcher{},
		dedup:      &memoryDedup{seen: map[string]bool{}},
		advisor:    &stubAdvisor{},
		classifier: &stubClassifier{},
		weather:    &stubWeather{weather: &models.Weather{City: "Bamenda", Country: "CM", Condition: "Rain", Temp: 21}},
		metrics:    metrics.New(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Handler{
		Dispatcher:     f.dispatcher,
		Dedup:          f.dedup,
		Advisor:        f.advisor,
		Classifier:     f.classifier,
		Weather:        f.weather,
		Rules:          rules,
		Metrics:        f.metrics,
		Logger:         logger,
		DefaultCountry: "CM",
		DedupTTL:       time.Hour,
	}
	f.router = NewRouter(h, f.metrics, logger, time.Now())
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func webhookRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func multipartRequest(t *testing.T, path string, fields map[string]string, filename string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" || image != nil {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestWebhook_AcknowledgesAndDispatches(t *testing.T) {
	f := newFixture(t)

	w := f.do(webhookRequest(url.Values{
		"From":       {"whatsapp:+237600000000"},
		"Body":       {" Bamenda "},
		"MediaUrl0":  {"https://api.twilio.com/media/ME1"},
		"MessageSid": {"SM1"},
	}))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "xml")
	require.Contains(t, w.Body.String(), "<Response><Message>✅ Thanks! Your request is being processed.")
	require.Len(t, f.dispatcher.msgs, 1)
	msg := f.dispatcher.msgs[0]
	require.Equal(t, "whatsapp:+237600000000", msg.From)
	require.Equal(t, "Bamenda", msg.Body)
	require.Equal(t, "https://api.twilio.com/media/ME1", msg.MediaURL)
	require.Equal(t, "SM1", msg.MessageSID)
	require.NotEmpty(t, msg.RequestID)
}

func TestWebhook_DuplicateDeliveryIsNotDispatched(t *testing.T) {
	f := newFixture(t)
	form := url.Values{"From": {"whatsapp:+1"}, "MessageSid": {"SM2"}}

	require.Equal(t, http.StatusOK, f.do(webhookRequest(form)).Code)
	require.Equal(t, http.StatusOK, f.do(webhookRequest(form)).Code)

	require.Len(t, f.dispatcher.msgs, 1)
	require.EqualValues(t, 1, f.metrics.Snapshot()["duplicates"])
}

func TestWebhook_AlwaysOK(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = errors.New("broker down")
	f.dedup.err = errors.New("redis down")

	w := f.do(webhookRequest(url.Values{"From": {"whatsapp:+1"}, "MessageSid": {"SM3"}}))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.dispatcher.msgs, 1)

	w = f.do(webhookRequest(url.Values{"Body": {"no sender"}}))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.dispatcher.msgs, 1)
}

func TestAdvice_Success(t *testing.T) {
	f := newFixture(t)
	f.advisor.advisory = &models.Advisory{
		Crop:      "maize",
		City:      "Bamenda",
		Weather:   f.weather.weather,
		Diagnosis: models.Diagnosis{Label: "Maize_blight", Confidence: 0.93},
		Advice:    []string{"Remove infected leaves to prevent spread."},
	}

	w := f.do(multipartRequest(t, "/api/advice/", map[string]string{"city": "Bamenda"}, "leaf.jpg", []byte("pixels")))
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	require.Equal(t, "success", out["status"])
	require.Equal(t, "maize", out["crop"])
	require.Equal(t, "Bamenda", out["city"])
	require.Equal(t, "Maize_blight", out["disease"].(map[string]interface{})["predicted_label"])
	require.Equal(t, "Rain", out["weather"].(map[string]interface{})["condition"])
	require.Equal(t, []interface{}{"Remove infected leaves to prevent spread."}, out["advice"])
	require.Equal(t, []byte("pixels"), f.advisor.req.Image)
	require.Equal(t, "leaf.jpg", f.advisor.req.Filename)
}

func TestAdvice_MissingFields(t *testing.T) {
	f := newFixture(t)

	w := f.do(multipartRequest(t, "/api/advice/", map[string]string{"city": "Bamenda"}, "", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Image and city are required", decode(t, w)["error"])

	w = f.do(multipartRequest(t, "/api/advice", nil, "leaf.jpg", []byte("pixels")))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdvice_ClassificationFailureKeepsWeather(t *testing.T) {
	f := newFixture(t)
	f.advisor.err = &services.Error{Kind: services.KindClassificationFailure, Reason: "classifier call failed", Err: errors.New("model offline")}

	w := f.do(multipartRequest(t, "/api/advice/", map[string]string{"city": "Buea"}, "leaf.jpg", []byte("pixels")))
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	require.Equal(t, models.UnknownCrop, out["crop"])
	disease := out["disease"].(map[string]interface{})
	require.Equal(t, "Unknown", disease["predicted_label"])
	require.Equal(t, "model offline", disease["error"])
	require.Equal(t, []interface{}{missingDiseaseAdvice}, out["advice"])
	require.Equal(t, "Buea", f.weather.city)
	require.Equal(t, "CM", f.weather.country)
}

func TestAdvice_GenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.advisor.advisory = &models.Advisory{Crop: "maize", City: "Buea", WeatherError: "timeout", Diagnosis: models.Diagnosis{Label: "Maize_rust"}}
	f.advisor.err = &services.Error{Kind: services.KindAdvisoryGenerationFailure, Reason: "advice generation failed", Err: errors.New("llm down")}

	w := f.do(multipartRequest(t, "/api/advice/", map[string]string{"city": "Buea"}, "leaf.jpg", []byte("pixels")))
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	require.Equal(t, []interface{}{"Advice generation failed: llm down"}, out["advice"])
	require.Equal(t, "timeout", out["weather"].(map[string]interface{})["error"])
}

func TestDiagnose(t *testing.T) {
	f := newFixture(t)
	f.classifier.diagnosis = &models.Diagnosis{Label: "Maize_blight", Confidence: 0.87654}

	w := f.do(multipartRequest(t, "/api/diagnose/", nil, "leaf.PNG", []byte("pixels")))
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	require.Equal(t, "leaf.PNG", out["filename"])
	prediction := out["prediction"].(map[string]interface{})
	require.Equal(t, "Maize_blight", prediction["predicted_label"])
	require.InDelta(t, 0.877, prediction["confidence"], 1e-9)
	require.Contains(t, prediction["treatment_advice"], "fungicide")
}

func TestDiagnose_Validation(t *testing.T) {
	f := newFixture(t)

	w := f.do(multipartRequest(t, "/api/diagnose/", nil, "", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(multipartRequest(t, "/api/diagnose/", nil, "leaf.gif", []byte("pixels")))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid file format. Allowed: PNG, JPG, JPEG", decode(t, w)["error"])
}

func TestDiagnose_ClassifierError(t *testing.T) {
	f := newFixture(t)
	f.classifier.err = errors.New("classifier returned 500")

	w := f.do(multipartRequest(t, "/api/diagnose/", nil, "leaf.jpg", []byte("pixels")))
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "error", decode(t, w)["status"])
}

func TestCurrentWeather(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/weather/current", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Bamenda", f.weather.city)
	require.Equal(t, "CM", f.weather.country)
	out := decode(t, w)
	require.Equal(t, "success", out["status"])
	require.Equal(t, "Rain", out["data"].(map[string]interface{})["condition"])

	f.weather.err = errors.New("city not found")
	w = f.do(httptest.NewRequest(http.MethodGet, "/api/weather/current?city=Atlantis&country=GR", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "GR", f.weather.country)
	require.Equal(t, "Failed to fetch weather data.", decode(t, w)["message"])
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decode(t, w)["success"])

	w = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, decode(t, w), "delivered")
}

func TestMonitorRouter(t *testing.T) {
	m := metrics.New()
	m.IncDelivered()
	r := NewMonitorRouter(m, time.Now())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, decode(t, w)["delivered"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/whatsapp", nil))
	require.NotEqual(t, http.StatusOK, w.Code)
}
