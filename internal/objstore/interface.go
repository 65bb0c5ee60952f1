package objstore

import "context"

// Store is the binary-object transfer capability consumed by the upload
// path: put-from-local-file and get-download-URL.
type Store interface {
	Upload(ctx context.Context, localPath string, key string) error
	DownloadURL(ctx context.Context, key string) (string, error)

	// URL returns the durable locator recorded in documents (an s3://
	// form), as opposed to the short-lived presigned URL from DownloadURL.
	URL(key string) string
}
