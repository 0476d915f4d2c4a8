package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobTarget names where an export is uploaded.
type BlobTarget struct {
	Account   string
	AccessKey string
	Container string
	Prefix    string // optional virtual directory
}

// Enabled reports whether enough was configured to attempt an upload.
func (t BlobTarget) Enabled() bool {
	return t.Account != "" || t.Container != "" || t.AccessKey != ""
}

// Validate reports missing fields of an enabled target.
func (t BlobTarget) Validate() error {
	var errs []error
	if t.Account == "" {
		errs = append(errs, errors.New("storage account is required"))
	}
	if t.AccessKey == "" {
		errs = append(errs, errors.New("access key is required"))
	}
	if t.Container == "" {
		errs = append(errs, errors.New("container is required"))
	}
	return errors.Join(errs...)
}

// BlobName is the blob the file at localPath is stored as.
func (t BlobTarget) BlobName(localPath string) string {
	name := filepath.Base(localPath)
	if t.Prefix == "" {
		return name
	}
	return path.Join(filepath.ToSlash(t.Prefix), name)
}

// UploadFile uploads localPath to the target container with shared key auth
// and returns the blob name used.
func UploadFile(ctx context.Context, logger *slog.Logger, target BlobTarget, localPath string) (string, error) {
	if err := target.Validate(); err != nil {
		return "", fmt.Errorf("invalid blob target: %w", err)
	}
	blobName := target.BlobName(localPath)
	l := logger.With(
		slog.String("storage_account", target.Account),
		slog.String("container", target.Container),
		slog.String("blob_name", blobName),
	)

	cred, err := azblob.NewSharedKeyCredential(target.Account, target.AccessKey)
	if err != nil {
		return "", fmt.Errorf("invalid credentials: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", target.Account)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return "", fmt.Errorf("create blob client: %w", err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s for upload: %w", localPath, err)
	}
	defer file.Close()

	l.Debug("Uploading export.", slog.String("local_path", localPath))
	if _, err := client.UploadFile(ctx, target.Container, blobName, file, &azblob.UploadFileOptions{}); err != nil {
		return "", fmt.Errorf("upload %s: %w", blobName, err)
	}
	l.Info("Uploaded export.", slog.String("local_path", localPath))
	return blobName, nil
}
