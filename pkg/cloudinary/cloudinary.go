package cloudinary

import (
	"context"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Client wraps blob upload and deletion for chat attachments.
type Client interface {
	UploadFile(ctx context.Context, file io.Reader, folder, filename string) (*UploadResult, error)
	DeleteByURL(ctx context.Context, url string) error
}

type UploadResult struct {
	URL  string
	Name string
	Size int64
}

type clientImpl struct {
	cld *cloudinary.Cloudinary
}

func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	return &clientImpl{cld: cld}, nil
}

func (c *clientImpl) UploadFile(ctx context.Context, file io.Reader, folder, filename string) (*UploadResult, error) {
	result, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "auto",
		UseFilename:  boolPtr(true),
	})
	if err != nil {
		return nil, err
	}
	name := result.OriginalFilename
	if name == "" {
		name = filename
	}
	return &UploadResult{
		URL:  result.SecureURL,
		Name: name,
		Size: int64(result.Bytes),
	}, nil
}

// DeleteByURL destroys the asset behind a delivery URL. Failures are treated
// as non-fatal by callers.
func (c *clientImpl) DeleteByURL(ctx context.Context, url string) error {
	publicID := publicIDFromURL(url)
	if publicID == "" {
		return nil
	}
	_, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return err
}

// publicIDFromURL extracts the public id from a delivery URL, e.g.
// https://res.cloudinary.com/demo/image/upload/v123/folder/name.png ->
// folder/name.
func publicIDFromURL(url string) string {
	idx := strings.Index(url, "/upload/")
	if idx < 0 {
		return ""
	}
	rest := url[idx+len("/upload/"):]
	// drop the version segment when present
	if strings.HasPrefix(rest, "v") {
		if slash := strings.Index(rest, "/"); slash > 0 {
			allDigits := true
			for _, r := range rest[1:slash] {
				if r < '0' || r > '9' {
					allDigits = false
					break
				}
			}
			if allDigits {
				rest = rest[slash+1:]
			}
		}
	}
	if dot := strings.LastIndex(rest, "."); dot > 0 {
		rest = rest[:dot]
	}
	return rest
}

func boolPtr(b bool) *bool { return &b }
