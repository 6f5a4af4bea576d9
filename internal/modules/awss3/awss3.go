// Package awss3 implements the cloud.aws.s3 module, an anonymous
// access check against a single S3 bucket.
package awss3

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/artifacts"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/options"
)

type Module struct {
	opts *options.Set
}

func New() modules.Module {
	return &Module{opts: options.MustNewSet(
		options.Spec{Name: "BUCKET", Type: options.TypeString, Required: true, Description: "Bucket name to check"},
		options.Spec{Name: "REGION", Type: options.TypeString, Default: "us-east-1", Description: "Bucket region"},
		options.Spec{Name: "ENDPOINT", Type: options.TypeString, Description: "Override endpoint URL (for S3-compatible stores)"},
		options.Spec{Name: "MAX_KEYS", Type: options.TypeInt, Default: "25", Description: "Maximum object keys to list"},
		options.Spec{Name: "TIMEOUT", Type: options.TypeInt, Default: "10", Description: "Request timeout in seconds"},
		options.Spec{Name: artifacts.OptionName, Type: options.TypeString, Description: "Write results to this JSON file (empty for workspace default)"},
	)}
}

func (m *Module) Name() string          { return "s3_public_access" }
func (m *Module) Description() string   { return "Anonymous S3 bucket listing and access check" }
func (m *Module) Options() *options.Set { return m.opts }

// listing mirrors the subset of the ListBucketResult document we read.
type listing struct {
	XMLName  xml.Name `xml:"ListBucketResult"`
	Name     string   `xml:"Name"`
	Contents []struct {
		Key          string `xml:"Key"`
		Size         int64  `xml:"Size"`
		LastModified string `xml:"LastModified"`
	} `xml:"Contents"`
}

func (m *Module) Execute(ctx app.Context) (modules.Outcome, error) {
	bucket := m.opts.String("BUCKET", "")
	region := m.opts.String("REGION", "us-east-1")
	maxKeys := m.opts.Int("MAX_KEYS", 25)
	timeout := time.Duration(m.opts.Int("TIMEOUT", 10)) * time.Second

	base := m.opts.String("ENDPOINT", "")
	if base == "" {
		if region == "us-east-1" {
			base = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
		}
	} else {
		base = strings.TrimSuffix(base, "/") + "/" + bucket
	}

	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx.Ctx, http.MethodGet, fmt.Sprintf("%s?list-type=2&max-keys=%d", base, maxKeys), nil)
	if err != nil {
		return modules.Outcome{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return modules.Outcome{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return modules.Outcome{}, fmt.Errorf("read response: %w", err)
	}

	out := modules.Outcome{Data: map[string]any{
		"bucket": bucket,
		"region": region,
		"status": resp.StatusCode,
	}}

	switch resp.StatusCode {
	case http.StatusOK:
		var lst listing
		if err := xml.Unmarshal(body, &lst); err != nil {
			return modules.Outcome{}, fmt.Errorf("parse bucket listing: %w", err)
		}
		objects := make([]any, 0, len(lst.Contents))
		for _, obj := range lst.Contents {
			objects = append(objects, map[string]any{
				"key":           obj.Key,
				"size":          obj.Size,
				"last_modified": obj.LastModified,
			})
		}
		out.Success = true
		out.Summary = fmt.Sprintf("bucket %s is publicly listable (%d object(s) shown)", bucket, len(objects))
		out.Data["objects"] = objects
	case http.StatusForbidden:
		// The bucket exists but denies anonymous listing.
		out.Summary = fmt.Sprintf("bucket %s exists but listing is denied", bucket)
		out.Data["exists"] = true
	case http.StatusNotFound:
		out.Summary = fmt.Sprintf("bucket %s does not exist", bucket)
		out.Data["exists"] = false
	default:
		out.Summary = fmt.Sprintf("unexpected status %d for bucket %s", resp.StatusCode, bucket)
	}

	if path, werr := artifacts.MaybeWrite(ctx, m.opts, "cloud.aws.s3", out); werr != nil {
		return out, werr
	} else if path != "" {
		out.Data["output_file"] = path
	}
	return out, nil
}
