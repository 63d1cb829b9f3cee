package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/pkg/errors"
)

const (
	SourceAI   = "ai"
	SourceMock = "mock"
)

// Analyzer estimates waste from an image.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, image []byte) (model.Detection, error)
}

// Result is the JSON document returned by the detection service.
type Result struct {
	TotalWasteArea    float64  `json:"totalWasteArea"`
	EstimatedVolume   float64  `json:"estimatedVolume"`
	WasteTypes        []string `json:"wasteTypes"`
	SeverityLevel     string   `json:"severityLevel"`
	ProcessedFilename *string  `json:"processedFilename"`
	ProcessedPath     *string  `json:"processedPath"`
}

type Health struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Timestamp   string `json:"timestamp"`
}

// Client talks to the detection service over HTTP.
type Client struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse detection service url")
	}
	return &Client{
		BaseURL: u,
		HTTPClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.BaseURL.String() + path
}

// ProcessedURL is where the service publishes the annotated image.
func (c *Client) ProcessedURL(filename string) string {
	return c.endpoint("/processed/" + url.PathEscape(filename))
}

// Process uploads the image as multipart field "image" to /process-waste.
func (c *Client) Process(ctx context.Context, filename string, image []byte) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := part.Write(image); err != nil {
		return nil, errors.Wrap(err, "write image")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/process-waste"), &body)
	if err != nil {
		return nil, errors.Wrap(err, "create process request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result Result
	if err := c.do(req, &result); err != nil {
		return nil, errors.Wrap(err, "execute process request")
	}
	return &result, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/health"), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create health request")
	}
	var h Health
	if err := c.do(req, &h); err != nil {
		return nil, errors.Wrap(err, "execute health request")
	}
	return &h, nil
}

// Analyze implements Analyzer on top of Process.
func (c *Client) Analyze(ctx context.Context, filename string, image []byte) (model.Detection, error) {
	res, err := c.Process(ctx, filename, image)
	if err != nil {
		return model.Detection{}, err
	}

	d := model.Detection{
		TotalWasteArea:  res.TotalWasteArea,
		EstimatedVolume: res.EstimatedVolume,
		WasteTypes:      res.WasteTypes,
		SeverityLevel:   res.SeverityLevel,
		Source:          SourceAI,
	}
	if d.WasteTypes == nil {
		d.WasteTypes = []string{}
	}
	if d.SeverityLevel == "" {
		d.SeverityLevel = Severity(d.TotalWasteArea, d.EstimatedVolume)
	}
	if res.ProcessedFilename != nil {
		d.ProcessedFilename = *res.ProcessedFilename
	}
	return d, nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute HTTP request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("detection service failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}

// Severity grades a detection by estimated volume in cubic metres.
func Severity(area, volume float64) string {
	switch {
	case area <= 0:
		return values.SeverityLow
	case volume > 5:
		return values.SeverityCritical
	case volume > 2:
		return values.SeverityHigh
	case volume > 1:
		return values.SeverityMedium
	default:
		return values.SeverityLow
	}
}

// Priority maps a detection to the triage priority of its report.
func Priority(d model.Detection) string {
	switch {
	case d.TotalWasteArea <= 0:
		return values.PriorityLow
	case d.EstimatedVolume > 10:
		return values.PriorityUrgent
	case d.EstimatedVolume > 5:
		return values.PriorityHigh
	case d.EstimatedVolume > 2:
		return values.PriorityMedium
	default:
		return values.PriorityLow
	}
}

type box struct{ width, height float64 }

var mockBoxes = []box{{80, 120}, {60, 90}}

// Mock produces a plausible detection without calling the service.
type Mock struct {
	// Rand returns a value in [0,1); waste is detected when it is above 0.3.
	Rand func() float64
}

func (m Mock) Analyze(_ context.Context, filename string, _ []byte) (model.Detection, error) {
	roll := rand.Float64
	if m.Rand != nil {
		roll = m.Rand
	}

	area := 0.0
	if roll() > 0.3 {
		for _, b := range mockBoxes {
			area += b.width * b.height
		}
	}
	volume := util.Round(area/10000, 2)

	d := model.Detection{
		TotalWasteArea:    area,
		EstimatedVolume:   volume,
		WasteTypes:        []string{},
		SeverityLevel:     Severity(area, volume),
		Source:            SourceMock,
		ProcessedFilename: "processed_" + filepath.Base(filename),
	}
	if area > 0 {
		d.WasteTypes = []string{"waste"}
	}
	return d, nil
}

// Fallback uses Primary and, when it fails, Secondary.
type Fallback struct {
	Primary   Analyzer
	Secondary Analyzer
	OnFailure func(err error)
}

func (f Fallback) Analyze(ctx context.Context, filename string, image []byte) (model.Detection, error) {
	d, err := f.Primary.Analyze(ctx, filename, image)
	if err == nil {
		return d, nil
	}
	log.WithError(err).Warn("detection service unavailable, using fallback analysis")
	if f.OnFailure != nil {
		f.OnFailure(err)
	}
	if f.Secondary == nil {
		return model.Detection{}, err
	}
	return f.Secondary.Analyze(ctx, filename, image)
}
