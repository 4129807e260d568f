package enum

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// blobStore is the part of a blob container the Azure enumerator needs.
type blobStore interface {
	list(ctx context.Context, prefix string, fn func(name string, size int64) error) error
	download(ctx context.Context, name string) (io.ReadCloser, error)
}

// AzureConfig selects a container. Either ServiceURL (optionally carrying
// a SAS token in its query) or ConnectionString must be set.
type AzureConfig struct {
	ServiceURL       string
	ConnectionString string
	Container        string
	Prefix           string
}

// AzureEnumerator enumerates the blobs of an Azure Storage container.
type AzureEnumerator struct {
	config  Config
	azure   AzureConfig
	account string
	store   blobStore
}

// NewAzureEnumerator creates a client for the container. No request is
// made until Enumerate.
func NewAzureEnumerator(config Config, azure AzureConfig) (*AzureEnumerator, error) {
	if azure.Container == "" {
		return nil, fmt.Errorf("azure: container is required")
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case azure.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(azure.ConnectionString, nil)
	case azure.ServiceURL != "":
		client, err = azblob.NewClientWithNoCredential(azure.ServiceURL, nil)
	default:
		return nil, fmt.Errorf("azure: service URL or connection string is required")
	}
	if err != nil {
		return nil, fmt.Errorf("azure: failed to create client: %w", err)
	}

	return &AzureEnumerator{
		config:  config,
		azure:   azure,
		account: accountName(client.URL()),
		store:   &azblobStore{client: client, container: azure.Container},
	}, nil
}

// ParseAzureURL splits "azure://account/container/prefix" into a service
// URL and container settings. A SAS token may follow as the query.
func ParseAzureURL(raw string) (AzureConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return AzureConfig{}, fmt.Errorf("azure: invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "azure" || u.Host == "" {
		return AzureConfig{}, fmt.Errorf("azure: expected azure://account/container[/prefix], got %q", raw)
	}

	container, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if container == "" {
		return AzureConfig{}, fmt.Errorf("azure: missing container in %q", raw)
	}

	service := "https://" + u.Host + ".blob.core.windows.net/"
	if u.RawQuery != "" {
		service += "?" + u.RawQuery
	}
	return AzureConfig{ServiceURL: service, Container: container, Prefix: prefix}, nil
}

// Enumerate downloads each blob under Prefix and yields it.
func (e *AzureEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	return e.store.list(ctx, e.azure.Prefix, func(name string, size int64) error {
		if e.config.MaxFileSize > 0 && size > e.config.MaxFileSize {
			return nil
		}

		rc, err := e.store.download(ctx, name)
		if err != nil {
			return fmt.Errorf("azure: download %s: %w", name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("azure: read %s: %w", name, err)
		}

		prov := types.BlobProvenance{
			Account:   e.account,
			Container: e.azure.Container,
			Name:      name,
		}
		if err := callback(content, types.ComputeBlobID(content), prov); err != nil {
			return err
		}
		if len(e.config.Extract) == 0 {
			return nil
		}
		return yieldExtracted(name, content, e.config, callback)
	})
}

// accountName takes the storage account from the first host label.
func accountName(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return ""
	}
	host, _, _ := strings.Cut(u.Hostname(), ".")
	return host
}

// azblobStore lists and downloads through the Azure SDK.
type azblobStore struct {
	client    *azblob.Client
	container string
}

func (s *azblobStore) list(ctx context.Context, prefix string, fn func(name string, size int64) error) error {
	opts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = &prefix
	}

	pager := s.client.NewListBlobsFlatPager(s.container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("azure: list %s: %w", s.container, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			var size int64
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}
			if err := fn(*item.Name, size); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *azblobStore) download(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
