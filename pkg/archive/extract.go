// Package archive extracts named text members from the daily zip bundle.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dibbsget/pkg/errors"
	"dibbsget/pkg/logger"
)

// ExtractMembers opens the zip at zipPath and, for each logical key in
// prefixes, copies the unique member whose case-folded name starts with the
// prefix and ends in ".txt" to <destDir>/<prefix><dateTag>.txt.
//
// Zero matches for a prefix is a hard failure, as is more than one: an
// ambiguous bundle is never silently resolved by entry order. Any failure
// aborts the whole extraction.
func ExtractMembers(zipPath, destDir string, prefixes map[string]string, dateTag string, log logger.Logger) (map[string]string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer reader.Close()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	log.InfoWithFields("archive opened", map[string]interface{}{
		"archive": filepath.Base(zipPath),
		"members": names,
	})

	out := make(map[string]string, len(prefixes))
	for key, prefix := range prefixes {
		member, err := findMember(reader.File, prefix, zipPath)
		if err != nil {
			return nil, err
		}

		target := filepath.Join(destDir, fmt.Sprintf("%s%s.txt", prefix, dateTag))
		if err := extractTo(member, target); err != nil {
			return nil, err
		}

		log.InfoWithFields("member extracted", map[string]interface{}{
			"member": member.Name,
			"target": target,
		})
		out[key] = target
	}

	return out, nil
}

// findMember locates the unique member matching prefix*.txt, case-insensitively.
func findMember(files []*zip.File, prefix, zipPath string) (*zip.File, error) {
	var match *zip.File
	for _, f := range files {
		name := strings.ToLower(f.Name)
		if !strings.HasPrefix(name, strings.ToLower(prefix)) || !strings.HasSuffix(name, ".txt") {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("multiple members matching %s*.txt in %s (%s, %s)",
				prefix, filepath.Base(zipPath), match.Name, f.Name)
		}
		match = f
	}
	if match == nil {
		return nil, errors.NotFound("could not find %s*.txt in %s", prefix, filepath.Base(zipPath))
	}
	return match, nil
}

// extractTo copies a member's contents verbatim to target.
func extractTo(member *zip.File, target string) error {
	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("failed to open member %s: %w", member.Name, err)
	}

	dst, err := os.Create(target)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	_, copyErr := io.Copy(dst, src)
	closeDstErr := dst.Close()
	closeSrcErr := src.Close()

	if copyErr != nil {
		os.Remove(target)
		return fmt.Errorf("failed to extract %s: %w", member.Name, copyErr)
	}
	if closeDstErr != nil {
		os.Remove(target)
		return fmt.Errorf("failed to close %s: %w", target, closeDstErr)
	}
	if closeSrcErr != nil {
		return fmt.Errorf("failed to close member %s: %w", member.Name, closeSrcErr)
	}

	return nil
}
