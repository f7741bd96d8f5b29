// Package core provides the session boundary, element model, error taxonomy
// and result types shared by the checkin-runner packages.
package core

// Attachment represents a debug artifact captured during step execution
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot
	ContentType string `json:"contentType"` // MIME type: image/png
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentHierarchy  = "hierarchy"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewHierarchyAttachment creates a page source attachment
func NewHierarchyAttachment(path string) Attachment {
	return Attachment{
		Name:        AttachmentHierarchy,
		ContentType: ContentTypeXML,
		Path:        path,
	}
}

// ArtifactConfig controls when artifacts are captured after a step
type ArtifactConfig struct {
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"` // Default: true
	CaptureOnSuccess bool `yaml:"captureOnSuccess" json:"captureOnSuccess"` // Default: true
	Screenshot       bool `yaml:"screenshot" json:"screenshot"`             // Default: true
	Hierarchy        bool `yaml:"hierarchy" json:"hierarchy"`               // Page source on failure. Default: true
}

// DefaultArtifactConfig screenshots after every step.
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure: true,
		CaptureOnSuccess: true,
		Screenshot:       true,
		Hierarchy:        true,
	}
}

// ShouldCapture returns true if artifacts should be captured for the given status
func (c ArtifactConfig) ShouldCapture(status StepStatus) bool {
	if !c.Screenshot {
		return false
	}
	switch status {
	case StatusFailed, StatusErrored:
		return c.CaptureOnFailure
	case StatusPassed, StatusWarned:
		return c.CaptureOnSuccess
	default:
		return false
	}
}

// ShouldCaptureHierarchy reports whether the page source is saved for a step
// with the given status. Only failed steps dump the hierarchy.
func (c ArtifactConfig) ShouldCaptureHierarchy(status StepStatus) bool {
	return c.Hierarchy && (status == StatusFailed || status == StatusErrored)
}
