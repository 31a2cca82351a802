package ocr

import (
	"context"
	"fmt"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
)

// Compile-time check to ensure CloudVision implements Recognizer
var _ interfaces.Recognizer = (*CloudVision)(nil)

// CloudVision sends images to Google Cloud Vision. Credentials come from the environment
// (GOOGLE_APPLICATION_CREDENTIALS or the metadata server).
type CloudVision struct {
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
}

// NewCloudVision creates a Cloud Vision client using application default credentials
func NewCloudVision(ctx context.Context, timeout time.Duration) (*CloudVision, error) {
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w: %w", entities.ErrRecognizerUnavailable, err)
	}
	return &CloudVision{client: client, timeout: timeout}, nil
}

// Name returns "gcp"
func (c *CloudVision) Name() string { return ProviderGCP }

// Close closes the Vision client
func (c *CloudVision) Close() error {
	return c.client.Close()
}

// Recognize runs DOCUMENT_TEXT_DETECTION, which handles dense label text better than TEXT_DETECTION
func (c *CloudVision) Recognize(ctx context.Context, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w: %w", entities.ErrRecognizerUnavailable, err)
	}

	return responseText(resp)
}

func responseText(resp *visionpb.BatchAnnotateImagesResponse) (string, error) {
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return cleanOutput(r.FullTextAnnotation.Text), nil
}
