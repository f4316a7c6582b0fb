package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, results []UploadResult) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatList(w io.Writer, result *ListResult) error
	FormatHead(w io.Writer, info *ObjectInfo) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload formats upload results as human-readable text.
func (f *HumanFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
			continue
		}
		if !f.Quiet {
			via := "direct"
			if r.Presigned {
				via = "presigned"
			}
			_, _ = fmt.Fprintf(w, "Uploaded: %s -> %s (%s, %s)\n", r.LocalPath, r.Key, formatSize(r.Size), via)
			if r.ETag != "" {
				_, _ = fmt.Fprintf(w, "  ETag: %s\n", r.ETag)
			}
		}
	}
	return nil
}

// FormatDownload formats download result as human-readable text.
func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if !f.Quiet {
		if result.LocalPath == "-" {
			_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", result.Key, formatSize(result.Size))
		} else {
			_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.Key, result.LocalPath, formatSize(result.Size))
		}
		_, _ = fmt.Fprintf(w, "  ETag: %s\n", result.ETag)
	}
	return nil
}

// FormatDelete formats delete results as human-readable text.
func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.Key, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s\n", r.Key)
		}
	}
	return nil
}

// FormatList formats list results as human-readable text.
func (f *HumanFormatter) FormatList(w io.Writer, result *ListResult) error {
	if len(result.Items) == 0 {
		_, _ = fmt.Fprintln(w, "No objects found")
		return nil
	}

	keyWidth := 3 // "KEY"
	for i := range result.Items {
		keyWidth = max(keyWidth, len(result.Items[i].Key))
	}
	keyWidth = min(keyWidth, 60)

	_, _ = fmt.Fprintf(w, "%-*s  %10s  %s\n", keyWidth, "KEY", "SIZE", "LAST MODIFIED")
	_, _ = fmt.Fprintf(w, "%s  %s  %s\n", strings.Repeat("-", keyWidth), strings.Repeat("-", 10), strings.Repeat("-", 19))

	for i := range result.Items {
		item := &result.Items[i]
		_, _ = fmt.Fprintf(w, "%-*s  %10s  %s\n",
			keyWidth,
			truncate(item.Key, keyWidth),
			formatSize(item.Size),
			item.LastModified.UTC().Format("2006-01-02 15:04:05"),
		)
	}

	// Print summary
	_, _ = fmt.Fprintf(w, "\n%d object(s) (%s total)\n", len(result.Items), formatSize(result.TotalSize()))

	if result.NextCursor != "" {
		_, _ = fmt.Fprintf(w, "Next page: use --cursor %q\n", result.NextCursor)
	}

	return nil
}

// FormatHead formats object attributes as human-readable text.
func (f *HumanFormatter) FormatHead(w io.Writer, info *ObjectInfo) error {
	_, _ = fmt.Fprintf(w, "Key:           %s\n", info.Key)
	_, _ = fmt.Fprintf(w, "Content-Type:  %s\n", info.ContentType)
	_, _ = fmt.Fprintf(w, "Size:          %s (%d bytes)\n", formatSize(info.Size), info.Size)
	_, _ = fmt.Fprintf(w, "Last-Modified: %s\n", info.LastModified.UTC().Format(time.RFC3339))
	if info.ETag != "" {
		_, _ = fmt.Fprintf(w, "ETag:          %s\n", info.ETag)
	}
	if len(info.Metadata) > 0 {
		_, _ = fmt.Fprintln(w, "Metadata:")
		keys := make([]string, 0, len(info.Metadata))
		for k := range info.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", k, info.Metadata[k])
		}
	}
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUpload formats upload results as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	type jsonResult struct {
		UploadResult
		Error string `json:"error,omitempty"`
	}

	output := make([]jsonResult, len(results))
	for i := range results {
		output[i] = jsonResult{UploadResult: results[i]}
		if results[i].Err != nil {
			output[i].Error = results[i].Err.Error()
		}
	}

	return writeJSON(w, output)
}

// FormatDownload formats download result as JSON.
func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

// FormatDelete formats delete results as JSON.
func (f *JSONFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	// Convert errors to strings for JSON output
	type jsonResult struct {
		Key     string `json:"key"`
		Deleted bool   `json:"deleted"`
		Error   string `json:"error,omitempty"`
	}

	output := struct {
		Results []jsonResult `json:"results"`
	}{
		Results: make([]jsonResult, len(results)),
	}

	for i, r := range results {
		jr := jsonResult{
			Key:     r.Key,
			Deleted: r.Deleted,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		output.Results[i] = jr
	}

	return writeJSON(w, output)
}

// FormatList formats list results as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, result *ListResult) error {
	return writeJSON(w, result)
}

// FormatHead formats object attributes as JSON.
func (f *JSONFormatter) FormatHead(w io.Writer, info *ObjectInfo) error {
	return writeJSON(w, info)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	nameWidth := 4 // "NAME"
	for i := range profiles {
		nameWidth = max(nameWidth, len(profiles[i].Name))
	}
	nameWidth = min(nameWidth, 20)

	_, _ = fmt.Fprintf(w, "  %-*s  %s\n", nameWidth, "NAME", "ENDPOINT")
	_, _ = fmt.Fprintf(w, "  %s  %s\n", strings.Repeat("-", nameWidth), strings.Repeat("-", 8))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s %-*s  %s\n", marker, nameWidth, truncate(p.Name, nameWidth), p.Endpoint)
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	return nil
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	output := struct {
		Profiles []Profile `json:"profiles"`
	}{
		Profiles: make([]Profile, len(profiles)),
	}

	for i, p := range profiles {
		p.Default = p.Name == defaultName
		output.Profiles[i] = p
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	profile.Default = isDefault
	return writeJSON(w, profile)
}

// truncate shortens s to width, marking the cut with "...".
func truncate(s string, width int) string {
	if len(s) <= width || width <= 3 {
		return s
	}
	return s[:width-3] + "..."
}
