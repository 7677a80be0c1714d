// Package download fetches tender attachments and packs them into a zip
// archive for delivery through Telegram.
package download

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tenderbot/internal/config"
	"tenderbot/internal/metrics"
	"tenderbot/internal/types"
)

var (
	htmlTags     = regexp.MustCompile(`<[^>]+>`)
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// CleanFilename strips HTML tags and filesystem-hostile characters from an
// attachment name as served by the export API.
func CleanFilename(name string) string {
	clean := htmlTags.ReplaceAllString(name, "")
	clean = invalidChars.ReplaceAllString(clean, "_")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		clean = "document.pdf"
	}
	return clean
}

// Result describes one archive job.
type Result struct {
	ArchivePath string
	Downloaded  int
	Total       int
	Errors      []string
}

type Downloader struct {
	client  *http.Client
	workers int
}

func NewDownloader(cfg config.DownloadConfig) *Downloader {
	return &Downloader{
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		workers: cfg.Workers,
	}
}

// FetchArchive downloads the documents with a bounded worker pool and packs
// the successful ones into tender_<regNumber>_docs.zip. The caller removes
// the archive after sending it.
func (d *Downloader) FetchArchive(ctx context.Context, regNumber string, docs []types.Document) (*Result, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to download for tender %s", regNumber)
	}

	tempDir, err := os.MkdirTemp("", "tender_"+uuid.New().String()[:8])
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	res := &Result{Total: len(docs)}

	jobs := make(chan types.Document)
	var mu sync.Mutex
	var files []string
	var wg sync.WaitGroup

	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				path, err := d.downloadOne(ctx, tempDir, doc)
				mu.Lock()
				if err != nil {
					logrus.Errorf("failed to download document %s: %v", doc.URL, err)
					res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", doc.Name, err))
				} else {
					files = append(files, path)
					metrics.DocumentsDownloaded.Inc()
				}
				mu.Unlock()
			}
		}()
	}
	for _, doc := range docs {
		jobs <- doc
	}
	close(jobs)
	wg.Wait()

	if len(files) == 0 {
		return nil, fmt.Errorf("no documents could be downloaded for tender %s", regNumber)
	}
	res.Downloaded = len(files)

	archivePath := filepath.Join(os.TempDir(), fmt.Sprintf("tender_%s_docs.zip", regNumber))
	if err := createArchive(archivePath, files); err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	res.ArchivePath = archivePath
	logrus.Infof("created archive %s (%d/%d documents)", archivePath, res.Downloaded, res.Total)
	return res, nil
}

func (d *Downloader) downloadOne(ctx context.Context, dir string, doc types.Document) (string, error) {
	if doc.URL == "" {
		return "", fmt.Errorf("document has no URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	path := filepath.Join(dir, CleanFilename(doc.Name))
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func createArchive(archivePath string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, file := range files {
		if err := addToArchive(zw, file); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addToArchive(zw *zip.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(filepath.Base(file))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
