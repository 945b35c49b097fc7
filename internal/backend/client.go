package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaplinChen/ppt-narrator/internal/domain"
)

// ClientConfig carries the connection settings and per-endpoint time
// budgets for the narration backend. Zero values fall back to the defaults
// used by the reference frontend.
type ClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	HealthTimeout   time.Duration
	UploadTimeout   time.Duration
	ScriptTimeout   time.Duration
	NarratedTimeout time.Duration
	SpeechTimeout   time.Duration
	HTTPClient      *http.Client
}

// Client talks to the remote generation backend. It performs no retries:
// a failed request is surfaced to the caller, and retry is always a
// user-initiated resubmission.
type Client struct {
	baseURL         string
	timeout         time.Duration
	healthTimeout   time.Duration
	uploadTimeout   time.Duration
	scriptTimeout   time.Duration
	narratedTimeout time.Duration
	speechTimeout   time.Duration
	httpClient      *http.Client
}

func NewClient(config ClientConfig) *Client {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HealthTimeout <= 0 {
		config.HealthTimeout = 5 * time.Second
	}
	if config.UploadTimeout <= 0 {
		config.UploadTimeout = 10 * time.Minute
	}
	if config.ScriptTimeout <= 0 {
		config.ScriptTimeout = 5 * time.Minute
	}
	if config.NarratedTimeout <= 0 {
		config.NarratedTimeout = 15 * time.Minute
	}
	if config.SpeechTimeout <= 0 {
		config.SpeechTimeout = 3 * time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:         strings.TrimSuffix(config.BaseURL, "/"),
		timeout:         config.Timeout,
		healthTimeout:   config.HealthTimeout,
		uploadTimeout:   config.UploadTimeout,
		scriptTimeout:   config.ScriptTimeout,
		narratedTimeout: config.NarratedTimeout,
		speechTimeout:   config.SpeechTimeout,
		httpClient:      config.HTTPClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health verifies the backend is reachable and answering.
func (c *Client) Health(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	return c.doJSON(ctx, http.MethodGet, "/api/health", c.healthTimeout, nil, &response)
}

// Upload sends a presentation file for parsing and returns its file id.
func (c *Client) Upload(ctx context.Context, path string) (domain.UploadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return domain.UploadResult{}, fmt.Errorf("copy upload payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.UploadResult{}, fmt.Errorf("finalize upload form: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, c.baseURL+"/api/upload", body)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("create upload request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.Header.Set("X-Request-ID", uuid.NewString())

	var response struct {
		Message string `json:"message"`
		FileID  string `json:"file_id"`
	}
	if err := c.send(timeoutCtx, request, &response); err != nil {
		return domain.UploadResult{}, err
	}
	return domain.UploadResult{FileID: response.FileID, Message: response.Message}, nil
}

// ParseStatus polls the background parsing state for an uploaded file.
func (c *Client) ParseStatus(ctx context.Context, fileID string) (domain.ParseStatus, error) {
	var response struct {
		FileID   string `json:"file_id"`
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Message  string `json:"message"`
		Slides   []struct {
			SlideNumber flexibleString `json:"slide_no"`
		} `json:"slides"`
	}
	path := "/api/parse/" + url.PathEscape(fileID) + "/status"
	if err := c.doJSON(ctx, http.MethodGet, path, c.timeout, nil, &response); err != nil {
		return domain.ParseStatus{}, err
	}
	return domain.ParseStatus{
		FileID:     response.FileID,
		Status:     response.Status,
		Progress:   response.Progress,
		Message:    response.Message,
		SlideCount: len(response.Slides),
	}, nil
}

// FileInfo reports the parsed summary of an uploaded presentation.
func (c *Client) FileInfo(ctx context.Context, fileID string) (domain.FileInfo, error) {
	var response struct {
		FileID   string `json:"file_id"`
		Filename string `json:"filename"`
		Slides   []struct {
			SlideNumber flexibleString `json:"slide_no"`
		} `json:"slides"`
	}
	path := "/api/files/" + url.PathEscape(fileID)
	if err := c.doJSON(ctx, http.MethodGet, path, c.timeout, nil, &response); err != nil {
		return domain.FileInfo{}, err
	}
	return domain.FileInfo{
		FileID:     response.FileID,
		Filename:   response.Filename,
		SlideCount: len(response.Slides),
	}, nil
}

// DeleteFile removes an uploaded presentation from the backend.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(fileID), c.timeout, nil, nil)
}

// GenerateScript runs script generation for an uploaded presentation. The
// endpoint is synchronous: the response body is the finished document.
func (c *Client) GenerateScript(
	ctx context.Context,
	fileID string,
	params domain.ScriptParams,
) (domain.ScriptDocument, error) {
	var response scriptDocumentPayload
	path := "/api/generate/" + url.PathEscape(fileID)
	if err := c.doJSON(ctx, http.MethodPost, path, c.scriptTimeout, params, &response); err != nil {
		return domain.ScriptDocument{}, err
	}
	return response.toDomain(), nil
}

// Translate converts an already generated script into another language.
func (c *Client) Translate(
	ctx context.Context,
	fullScript string,
	targetLanguage string,
	apiKey string,
) (domain.ScriptDocument, error) {
	payload := map[string]string{
		"full_script":     fullScript,
		"target_language": targetLanguage,
	}
	if strings.TrimSpace(apiKey) != "" {
		payload["api_key"] = apiKey
	}
	var response scriptDocumentPayload
	if err := c.doJSON(ctx, http.MethodPost, "/api/translate", c.scriptTimeout, payload, &response); err != nil {
		return domain.ScriptDocument{}, err
	}
	return response.toDomain(), nil
}

// SubmitJob implements the remote job port consumed by the orchestrator.
// Script jobs complete inside the submit call; narrated-assembly jobs hand
// back a job id to poll.
func (c *Client) SubmitJob(ctx context.Context, request domain.JobRequest) (domain.SubmitReceipt, error) {
	if err := request.Validate(); err != nil {
		return domain.SubmitReceipt{}, err
	}

	switch request.Kind {
	case domain.JobKindScript:
		document, err := c.GenerateScript(ctx, request.Script.FileID, request.Script.Params)
		if err != nil {
			return domain.SubmitReceipt{}, err
		}
		return domain.SubmitReceipt{Completed: &domain.JobResult{Document: &document}}, nil
	case domain.JobKindNarratedAssembly:
		narrated := request.Narrated
		slideScripts := make([]slideScriptPayload, 0, len(narrated.Segments))
		for _, segment := range narrated.Segments {
			slideScripts = append(slideScripts, slideScriptPayload{
				SlideNumber: flexibleString(segment.SlideNumber),
				Title:       segment.Title,
				Script:      segment.Text,
			})
		}
		payload := map[string]any{
			"file_id":       narrated.FileID,
			"slide_scripts": slideScripts,
			"voice":         narrated.Voice,
			"rate":          narrated.Rate,
			"pitch":         narrated.Pitch,
		}
		var response struct {
			JobID string `json:"job_id"`
		}
		err := c.doJSON(ctx, http.MethodPost, "/api/ppt/generate-narrated", c.narratedTimeout, payload, &response)
		if err != nil {
			return domain.SubmitReceipt{}, err
		}
		if strings.TrimSpace(response.JobID) == "" {
			return domain.SubmitReceipt{}, errors.New("backend accepted narrated job without a job id")
		}
		return domain.SubmitReceipt{JobID: response.JobID}, nil
	default:
		return domain.SubmitReceipt{}, fmt.Errorf("job kind %q cannot be submitted", request.Kind)
	}
}

// JobStatus polls one remote job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (domain.StatusReport, error) {
	var response struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Message  string `json:"message"`
		Result   *struct {
			URLPath  string `json:"url_path"`
			Filename string `json:"filename"`
		} `json:"result"`
	}
	path := "/api/ppt/job/" + url.PathEscape(jobID) + "/status"
	if err := c.doJSON(ctx, http.MethodGet, path, c.timeout, nil, &response); err != nil {
		return domain.StatusReport{}, err
	}

	report := domain.StatusReport{
		Status:   response.Status,
		Progress: response.Progress,
		Message:  response.Message,
	}
	if response.Result != nil {
		report.Result = &domain.JobResult{
			Artifact: &domain.ArtifactRef{
				URLPath:  response.Result.URLPath,
				Filename: response.Result.Filename,
			},
		}
	}
	return report, nil
}

// SynthesizeSpeech implements the synthesis port consumed by the preview
// service.
func (c *Client) SynthesizeSpeech(ctx context.Context, request domain.SpeechRequest) (domain.AudioClip, error) {
	payload := map[string]string{
		"text":  request.Text,
		"voice": request.Voice,
		"rate":  request.Rate,
		"pitch": request.Pitch,
	}
	var response struct {
		Filename string `json:"filename"`
		Path     string `json:"path"`
		URLPath  string `json:"url_path"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/tts/generate", c.speechTimeout, payload, &response); err != nil {
		return domain.AudioClip{}, err
	}
	return domain.AudioClip{
		Filename: response.Filename,
		Path:     response.Path,
		URLPath:  response.URLPath,
	}, nil
}

// Voices lists synthesis voices, optionally filtered by language prefix.
func (c *Client) Voices(ctx context.Context, language string) ([]domain.Voice, error) {
	path := "/api/tts/voices"
	if strings.TrimSpace(language) != "" {
		path += "?language=" + url.QueryEscape(language)
	}
	var response []struct {
		ShortName    string `json:"short_name"`
		FriendlyName string `json:"friendly_name"`
		Gender       string `json:"gender"`
		Locale       string `json:"locale"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, c.timeout, nil, &response); err != nil {
		return nil, err
	}

	voices := make([]domain.Voice, 0, len(response))
	for _, item := range response {
		voices = append(voices, domain.Voice{
			ShortName:    item.ShortName,
			FriendlyName: item.FriendlyName,
			Locale:       item.Locale,
			Gender:       item.Gender,
		})
	}
	return voices, nil
}

// DownloadArtifact streams a completed artifact into destDir and returns
// the written path.
func (c *Client) DownloadArtifact(ctx context.Context, ref domain.ArtifactRef, destDir string) (string, error) {
	if strings.TrimSpace(ref.URLPath) == "" {
		return "", errors.New("artifact reference has no url path")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, c.baseURL+ref.URLPath, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	request.Header.Set("X-Request-ID", uuid.NewString())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", classifyTransportError(timeoutCtx, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", readRemoteError(response)
	}

	filename := ref.Filename
	if strings.TrimSpace(filename) == "" {
		filename = filepath.Base(ref.URLPath)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	destPath := filepath.Join(destDir, filename)

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, response.Body); err != nil {
		return "", fmt.Errorf("write artifact file: %w", err)
	}
	return destPath, nil
}

func (c *Client) doJSON(
	ctx context.Context,
	method string,
	path string,
	timeout time.Duration,
	payload any,
	out any,
) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", path, err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(timeoutCtx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("X-Request-ID", uuid.NewString())

	return c.send(timeoutCtx, request, out)
}

func (c *Client) send(ctx context.Context, request *http.Request, out any) error {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return readRemoteError(response)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}

	decoded, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}
	if err := json.Unmarshal(decoded, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}

func readRemoteError(response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))

	detail := strings.TrimSpace(string(body))
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Detail) != "" {
		detail = strings.TrimSpace(payload.Detail)
	}
	if detail == "" {
		detail = http.StatusText(response.StatusCode)
	}
	if len(detail) > 700 {
		detail = detail[:700]
	}
	return &domain.RemoteError{StatusCode: response.StatusCode, Detail: detail}
}
