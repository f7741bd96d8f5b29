// Package appium implements core.Session against an Appium server via the
// W3C WebDriver protocol and Appium's extension endpoints.
package appium

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// DefaultConnectRetries matches the number of session-creation retries the
// suite has always used against flaky local servers.
const DefaultConnectRetries = 3

// W3CError is an error reported by the server in a WebDriver error payload.
type W3CError struct {
	StatusCode int
	Code       string // e.g. "no such element", "session not created"
	Message    string
}

func (e *W3CError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoSuchElement reports whether err is a W3C "no such element" error.
func IsNoSuchElement(err error) bool {
	var w *W3CError
	return errors.As(err, &w) && w.Code == "no such element"
}

// Client handles HTTP communication with Appium server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	platform  string // ios, android
	screenW   int
	screenH   int

	// ConnectRetries is the number of extra session-creation attempts after
	// a transport failure. Server-side rejections are not retried.
	ConnectRetries int
	// RetryInterval is the initial backoff between connection attempts.
	RetryInterval time.Duration

	implicitWait  time.Duration
	implicitKnown bool
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Minute, // Screenshots and session creation can be slow
		},
		ConnectRetries: DefaultConnectRetries,
		RetryInterval:  time.Second,
	}
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryInterval

	attempt := 0
	value, err := backoff.Retry(ctx, func() (map[string]interface{}, error) {
		attempt++
		resp, err := c.post("/session", body)
		if err != nil {
			var w *W3CError
			if errors.As(err, &w) {
				return nil, backoff.Permanent(err)
			}
			logger.Warn("session create attempt %d failed: %v", attempt, err)
			return nil, err
		}
		value, ok := resp["value"].(map[string]interface{})
		if !ok {
			return nil, backoff.Permanent(fmt.Errorf("invalid session response"))
		}
		return value, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(c.ConnectRetries+1)))
	if err != nil {
		var w *W3CError
		if errors.As(err, &w) {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return core.ErrServerUnreachable.WithMessagef("could not reach Appium at %s after %d attempts", c.serverURL, attempt).WithCause(err)
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	// Extract platform from capabilities
	if caps, ok := value["capabilities"].(map[string]interface{}); ok {
		if platform, ok := caps["platformName"].(string); ok {
			c.platform = strings.ToLower(platform)
		}
	}

	c.fetchScreenSize()
	logger.Info("session %s created (platform=%s, screen=%dx%d)", c.sessionID, c.platform, c.screenW, c.screenH)
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect() error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(c.sessionPath())
	c.sessionID = ""
	c.implicitKnown = false
	return err
}

// SessionID returns the active session id, empty when disconnected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Platform returns the platform (ios/android).
func (c *Client) Platform() string {
	return c.platform
}

// Status queries the server's readiness. Does not need a session.
func (c *Client) Status() (ready bool, message string, err error) {
	resp, err := c.get("/status")
	if err != nil {
		return false, "", err
	}
	value, _ := resp["value"].(map[string]interface{})
	ready, _ = value["ready"].(bool)
	message, _ = value["message"].(string)
	return ready, message, nil
}

func (c *Client) fetchScreenSize() {
	resp, err := c.get(c.sessionPath() + "/window/rect")
	if err != nil {
		return
	}
	if value, ok := resp["value"].(map[string]interface{}); ok {
		if w, ok := value["width"].(float64); ok {
			c.screenW = int(w)
		}
		if h, ok := value["height"].(float64); ok {
			c.screenH = int(h)
		}
	}
}

// WindowSize returns the screen dimensions, querying the server once.
func (c *Client) WindowSize() (int, int, error) {
	if c.screenW == 0 || c.screenH == 0 {
		c.fetchScreenSize()
	}
	if c.screenW == 0 || c.screenH == 0 {
		return 0, 0, fmt.Errorf("window size unavailable")
	}
	return c.screenW, c.screenH, nil
}

// Element Operations

// FindElements finds all elements matching the strategy. A server-side
// "no such element" is reported as zero matches.
func (c *Client) FindElements(using, value string) ([]string, error) {
	body := map[string]interface{}{
		"using": using,
		"value": value,
	}

	resp, err := c.post(c.sessionPath()+"/elements", body)
	if err != nil {
		if IsNoSuchElement(err) {
			return nil, nil
		}
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}

	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/clear", map[string]interface{}{})
	return err
}

// SetElementValue types text into an element.
func (c *Client) SetElementValue(elementID, text string) error {
	chars := make([]string, 0, len(text))
	for _, ch := range text {
		chars = append(chars, string(ch))
	}
	_, err := c.post(c.elementPath(elementID)+"/value", map[string]interface{}{
		"text":  text,
		"value": chars,
	})
	return err
}

// ElementText returns an element's text.
func (c *Client) ElementText(elementID string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// ElementAttribute returns an element's attribute value. Booleans are
// returned as "true"/"false"; a null attribute is an empty string.
func (c *Client) ElementAttribute(elementID, name string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/attribute/" + name)
	if err != nil {
		return "", err
	}
	switch v := resp["value"].(type) {
	case string:
		return v, nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

// ElementRect returns an element's position and size.
func (c *Client) ElementRect(elementID string) (core.Bounds, error) {
	resp, err := c.get(c.elementPath(elementID) + "/rect")
	if err != nil {
		return core.Bounds{}, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return core.Bounds{}, fmt.Errorf("invalid rect response")
	}

	xf, _ := value["x"].(float64)
	yf, _ := value["y"].(float64)
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)
	return core.Bounds{X: int(xf), Y: int(yf), Width: int(wf), Height: int(hf)}, nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// Touch/Gesture Operations (W3C Actions)

// PerformActions executes one touch pointer sequence and releases it.
func (c *Client) PerformActions(seq core.PointerSequence) error {
	id := seq.ID
	if id == "" {
		id = "finger1"
	}
	actions := make([]map[string]interface{}, 0, len(seq.Actions))
	for _, a := range seq.Actions {
		switch a.Type {
		case core.ActionPointerMove:
			actions = append(actions, map[string]interface{}{
				"type": a.Type, "duration": a.Duration, "x": a.X, "y": a.Y, "origin": "viewport",
			})
		case core.ActionPointerDown, core.ActionPointerUp:
			actions = append(actions, map[string]interface{}{"type": a.Type, "button": 0})
		case core.ActionPause:
			actions = append(actions, map[string]interface{}{"type": a.Type, "duration": a.Duration})
		default:
			return fmt.Errorf("unsupported pointer action: %s", a.Type)
		}
	}

	payload := []map[string]interface{}{
		{
			"type":       "pointer",
			"id":         id,
			"parameters": map[string]interface{}{"pointerType": "touch"},
			"actions":    actions,
		},
	}
	if _, err := c.post(c.sessionPath()+"/actions", map[string]interface{}{"actions": payload}); err != nil {
		return err
	}
	// Release input state so the next sequence starts clean
	_, err := c.delete(c.sessionPath() + "/actions")
	return err
}

// App Management

func (c *Client) appBody(appID string) map[string]interface{} {
	body := make(map[string]interface{})
	if c.platform == "ios" {
		body["bundleId"] = appID
	} else {
		body["appId"] = appID
	}
	return body
}

// ActivateApp brings an app to the foreground, launching it if needed.
func (c *Client) ActivateApp(appID string) error {
	_, err := c.post(c.sessionPath()+"/appium/device/activate_app", c.appBody(appID))
	return err
}

// TerminateApp terminates an app.
func (c *Client) TerminateApp(appID string) error {
	_, err := c.post(c.sessionPath()+"/appium/device/terminate_app", c.appBody(appID))
	return err
}

// BackgroundApp sends the app to the background for d, then restores it.
func (c *Client) BackgroundApp(d time.Duration) error {
	_, err := c.post(c.sessionPath()+"/appium/app/background", map[string]interface{}{
		"seconds": d.Seconds(),
	})
	return err
}

// CurrentPackage returns the package of the foreground app (Android) or the
// bundle id of the active app (iOS).
func (c *Client) CurrentPackage() (string, error) {
	if c.platform == "ios" {
		value, err := c.ExecuteMobile("activeAppInfo", map[string]interface{}{})
		if err != nil {
			return "", err
		}
		info, _ := value.(map[string]interface{})
		bundleID, _ := info["bundleId"].(string)
		return bundleID, nil
	}
	resp, err := c.get(c.sessionPath() + "/appium/device/current_package")
	if err != nil {
		return "", err
	}
	pkg, _ := resp["value"].(string)
	return pkg, nil
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot() ([]byte, error) {
	resp, err := c.get(c.sessionPath() + "/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source() (string, error) {
	resp, err := c.get(c.sessionPath() + "/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// Timeouts

// SetImplicitWait sets the implicit wait timeout.
func (c *Client) SetImplicitWait(timeout time.Duration) error {
	_, err := c.post(c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	if err != nil {
		c.implicitKnown = false
		return err
	}
	c.implicitWait = timeout
	c.implicitKnown = true
	return nil
}

// ImplicitWait returns the current implicit wait. The last value set through
// this client is authoritative; otherwise the server is asked.
func (c *Client) ImplicitWait() (time.Duration, error) {
	if c.implicitKnown {
		return c.implicitWait, nil
	}
	resp, err := c.get(c.sessionPath() + "/timeouts")
	if err != nil {
		return 0, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("invalid timeouts response")
	}
	ms, _ := value["implicit"].(float64)
	c.implicitWait = time.Duration(ms) * time.Millisecond
	c.implicitKnown = true
	return c.implicitWait, nil
}

// SetSettings updates Appium driver settings.
// For Android UiAutomator2: waitForIdleTimeout, waitForSelectorTimeout
func (c *Client) SetSettings(settings map[string]interface{}) error {
	_, err := c.post(c.sessionPath()+"/appium/settings", map[string]interface{}{
		"settings": settings,
	})
	return err
}

// ExecuteMobile executes a mobile: command.
func (c *Client) ExecuteMobile(command string, args map[string]interface{}) (interface{}, error) {
	resp, err := c.post(c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": "mobile: " + command,
		"args":   []interface{}{args},
	})
	if err != nil {
		return nil, err
	}
	return resp["value"], nil
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	return c.request("GET", path, nil)
}

func (c *Client) post(path string, body interface{}) (map[string]interface{}, error) {
	return c.request("POST", path, body)
}

func (c *Client) delete(path string) (map[string]interface{}, error) {
	return c.request("DELETE", path, nil)
}

func (c *Client) request(method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path
	start := time.Now()

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logger.Debug("%s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (%d): %w", resp.StatusCode, err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			errMsg, _ := errValue["message"].(string)
			return result, &W3CError{StatusCode: resp.StatusCode, Code: errType, Message: errMsg}
		}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}

var _ core.Session = (*Client)(nil)
