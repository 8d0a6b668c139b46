package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureImageSource implements ImageSource for azblob:// image references of
// the form azblob://container/path/to/blob.png.
type AzureImageSource struct {
	client *azblob.Client
}

func NewAzureImageSource(accountName string, accountKey string) (ImageSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &AzureImageSource{client: client}, nil
}

func (s *AzureImageSource) FetchImage(ctx context.Context, imageRef string) (*ImageData, error) {
	container, blobName, err := parseBlobRef(imageRef)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	data, err := io.ReadAll(io.LimitReader(retryReader, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("blob exceeds %d byte limit", maxImageBytes)
	}

	mimeType := ""
	if downloadResponse.ContentType != nil {
		mimeType = *downloadResponse.ContentType
	}

	return &ImageData{
		Bytes:    data,
		MIMEType: sniffImageMIME(mimeType, data),
	}, nil
}

func parseBlobRef(imageRef string) (container, blob string, err error) {
	parsed, err := url.Parse(imageRef)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob ref: %w", err)
	}
	if parsed.Scheme != "azblob" {
		return "", "", fmt.Errorf("unexpected scheme %q for blob ref", parsed.Scheme)
	}

	container = parsed.Host
	blob = strings.TrimPrefix(parsed.Path, "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("blob ref must name a container and blob path (got %q)", imageRef)
	}
	return container, blob, nil
}
