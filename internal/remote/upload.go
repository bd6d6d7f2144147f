package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
)

// Upload writes content to remotePath over SFTP, creating parent
// directories as needed.
func (c *Client) Upload(ctx context.Context, content io.Reader, remotePath string, mode os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := sftp.NewClient(c.conn)
	if err != nil {
		return fmt.Errorf("opening sftp to %s: %w", c.endpoint.Host, err)
	}
	defer client.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("creating %s on %s: %w", dir, c.endpoint.Host, err)
		}
	}

	f, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("creating %s on %s: %w", remotePath, c.endpoint.Host, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return fmt.Errorf("writing %s on %s: %w", remotePath, c.endpoint.Host, err)
	}
	if err := f.Chmod(mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", remotePath, err)
	}
	return nil
}

// UploadFile streams a local file to remotePath.
func (c *Client) UploadFile(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return c.Upload(ctx, f, remotePath, info.Mode().Perm())
}
