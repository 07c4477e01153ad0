// Package backup uploads the SQLite database file to a Google Drive folder
// on a fixed interval. Only used with the sqlite storage backend; hosted
// Postgres deployments rely on the database's own backups.
package backup

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/kt34/ai-notes/internal/logging"
)

type Uploader struct {
	service  *drive.Service
	folderID string
	dbPath   string

	mu      sync.Mutex
	fileIDs map[string]string
}

func NewUploader(ctx context.Context, credPath, folderID, dbPath string) (*Uploader, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Uploader{
		service:  svc,
		folderID: folderID,
		dbPath:   dbPath,
		fileIDs:  make(map[string]string),
	}, nil
}

// Upload pushes the current database file to Drive. One Drive file exists
// per date; later uploads on the same date update it in place.
func (u *Uploader) Upload(date string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	f, err := os.Open(u.dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", u.dbPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := u.fileIDs[date]; ok {
		if _, err := u.service.Files.Update(fileID, &drive.File{}).Media(f).Do(); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	doc, err := u.service.Files.Create(&drive.File{
		Name:     fmt.Sprintf("ai-notes-%s.db", date),
		MimeType: "application/octet-stream",
		Parents:  []string{u.folderID},
	}).Media(f).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	u.fileIDs[date] = doc.Id
	return nil
}

// Run uploads on the given interval until ctx is cancelled. Failures are
// logged and retried on the next tick.
func (u *Uploader) Run(ctx context.Context, interval time.Duration) {
	log := logging.WithComponent("backup")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			date := time.Now().UTC().Format("2006-01-02")
			if err := u.Upload(date); err != nil {
				log.Error().Err(err).Msg("database backup failed")
			} else {
				log.Info().Str("date", date).Msg("database backed up")
			}
		}
	}
}
