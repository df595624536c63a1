// Package pipeline sequences a full download run: fetch the daily archive,
// extract its two text members, fetch the standalone file with URL fallback,
// and atomically promote all three outputs.
package pipeline

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"dibbsget/pkg/archive"
	"dibbsget/pkg/config"
	"dibbsget/pkg/errors"
	"dibbsget/pkg/logger"
)

// Fetcher is the HTTP surface the pipeline drives. Implemented by
// fetch.Client.
type Fetcher interface {
	// Probe checks URL existence; the result is advisory only.
	Probe(url string) bool

	// Retrieve streams the URL to dest, failing on bad status or
	// markup-looking content.
	Retrieve(url, dest string) error
}

// Target describes one fetch operation: where to download from, where the
// in-flight bytes land, where a validated download is promoted to, and the
// minimum plausible size.
type Target struct {
	URL       string
	TempPath  string
	FinalPath string
	MinBytes  int64
}

// memberPrefixes maps the logical archive outputs to their filename prefixes.
var memberPrefixes = map[string]string{
	"bq": "bq",
	"as": "as",
}

// Pipeline is the run orchestrator. It owns the staging directory for the
// duration of a run; nothing is promoted to the output directory unless
// every stage succeeds.
type Pipeline struct {
	cfg    *config.Config
	client Fetcher
	log    logger.Logger
}

// New creates a pipeline over a validated configuration and an
// authenticated fetcher.
func New(cfg *config.Config, client Fetcher, log logger.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, client: client, log: log}
}

// Run executes the full download for the given date tag. It either places
// all three files in the output directory or returns an error having placed
// none; staging leftovers are kept for postmortem inspection.
func (p *Pipeline) Run(dateTag string) error {
	p.log.InfoWithFields("download run starting", map[string]interface{}{
		"date_tag": dateTag,
	})

	zipPath, err := p.fetchArchive(dateTag)
	if err != nil {
		return fmt.Errorf("archive stage: %w", err)
	}

	extracted, err := archive.ExtractMembers(zipPath, p.cfg.Paths.Staging, memberPrefixes, dateTag, p.log)
	if err != nil {
		return fmt.Errorf("extract stage: %w", err)
	}

	standalonePath, err := p.fetchStandalone(dateTag)
	if err != nil {
		return fmt.Errorf("standalone stage: %w", err)
	}

	staged := []string{extracted["bq"], extracted["as"], standalonePath}
	if err := p.promote(staged); err != nil {
		return fmt.Errorf("placement stage: %w", err)
	}

	p.log.InfoWithFields("download run complete", map[string]interface{}{
		"date_tag": dateTag,
		"output":   p.cfg.Paths.Output,
		"files":    len(staged),
	})
	return nil
}

// fetchArchive downloads and validates the daily zip bundle, returning the
// staged archive path.
func (p *Pipeline) fetchArchive(dateTag string) (string, error) {
	t := Target{
		URL:       config.ExpandURL(p.cfg.URLs.BQZip, dateTag),
		TempPath:  filepath.Join(p.cfg.Paths.Staging, fmt.Sprintf("bq%s.zip.part", dateTag)),
		FinalPath: filepath.Join(p.cfg.Paths.Staging, fmt.Sprintf("bq%s.zip", dateTag)),
		MinBytes:  p.cfg.Validation.MinZipBytes,
	}

	if !p.client.Probe(t.URL) {
		p.log.WarnWithFields("probe for archive failed; attempting download anyway", map[string]interface{}{
			"url": t.URL,
		})
	}

	p.log.WithField("url", t.URL).Info("downloading archive")
	if err := p.client.Retrieve(t.URL, t.TempPath); err != nil {
		return "", err
	}

	size, err := p.validateSize(t.TempPath, t.MinBytes)
	if err != nil {
		return "", err
	}

	if err := os.Rename(t.TempPath, t.FinalPath); err != nil {
		return "", fmt.Errorf("failed to promote %s: %w", t.TempPath, err)
	}

	p.log.InfoWithFields("archive saved", map[string]interface{}{
		"path":  t.FinalPath,
		"bytes": size,
	})
	return t.FinalPath, nil
}

// fetchStandalone tries the standalone file's candidate URLs in order and
// returns the staged path of the first validated download. Each attempt
// yields an explicit result; the failures are aggregated when every
// candidate is exhausted.
func (p *Pipeline) fetchStandalone(dateTag string) (string, error) {
	tempPath := filepath.Join(p.cfg.Paths.Staging, fmt.Sprintf("in%s.txt.part", dateTag))
	finalPath := filepath.Join(p.cfg.Paths.Staging, fmt.Sprintf("in%s.txt", dateTag))

	candidates := []Target{
		{URL: config.ExpandURL(p.cfg.URLs.INTxtLower, dateTag), TempPath: tempPath, FinalPath: finalPath, MinBytes: p.cfg.Validation.MinINBytes},
		{URL: config.ExpandURL(p.cfg.URLs.INTxtUpper, dateTag), TempPath: tempPath, FinalPath: finalPath, MinBytes: p.cfg.Validation.MinINBytes},
	}

	var attemptErrs []error
	for _, t := range candidates {
		err := p.attempt(t)
		if err == nil {
			if renameErr := os.Rename(t.TempPath, t.FinalPath); renameErr != nil {
				return "", fmt.Errorf("failed to promote %s: %w", t.TempPath, renameErr)
			}
			return t.FinalPath, nil
		}

		p.log.WarnWithFields("standalone download attempt failed", map[string]interface{}{
			"url":   t.URL,
			"error": err.Error(),
		})
		if removeErr := os.Remove(t.TempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			p.log.WithError(removeErr).Warn("failed to remove partial download")
		}
		attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", t.URL, err))
	}

	return "", fmt.Errorf("failed to download standalone file via all %d URLs: %w",
		len(candidates), stderrors.Join(attemptErrs...))
}

// attempt performs one probe-retrieve-validate cycle for a candidate.
func (p *Pipeline) attempt(t Target) error {
	if !p.client.Probe(t.URL) {
		p.log.WarnWithFields("probe for standalone file failed; attempting download anyway", map[string]interface{}{
			"url": t.URL,
		})
	}

	p.log.WithField("url", t.URL).Info("downloading standalone file")
	if err := p.client.Retrieve(t.URL, t.TempPath); err != nil {
		return err
	}

	size, err := p.validateSize(t.TempPath, t.MinBytes)
	if err != nil {
		return err
	}

	p.log.InfoWithFields("standalone file downloaded", map[string]interface{}{
		"url":   t.URL,
		"bytes": size,
	})
	return nil
}

// validateSize checks the downloaded file against its minimum byte size.
func (p *Pipeline) validateSize(path string, minBytes int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() < minBytes {
		return 0, errors.SizeThreshold("%s is too small (%d bytes, minimum %d); likely invalid",
			filepath.Base(path), info.Size(), minBytes)
	}
	return info.Size(), nil
}

// promote moves each staged file into the output directory under its staged
// name, replacing any pre-existing file.
func (p *Pipeline) promote(staged []string) error {
	for _, src := range staged {
		dst := filepath.Join(p.cfg.Paths.Output, filepath.Base(src))
		if _, err := os.Stat(dst); err == nil {
			if err := os.Remove(dst); err != nil {
				return fmt.Errorf("failed to replace %s: %w", dst, err)
			}
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
		}
		p.log.InfoWithFields("file placed", map[string]interface{}{
			"file": filepath.Base(src),
			"dest": dst,
		})
	}
	return nil
}
