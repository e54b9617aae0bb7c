package ytdlp

import (
	"strconv"
	"strings"
)

// ProgressUpdate captures yt-dlp download progress output.
type ProgressUpdate struct {
	Stage   string
	Percent float64
	Message string
}

const downloadPrefix = "[download]"

func parseProgress(line string) (ProgressUpdate, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, downloadPrefix) {
		return ProgressUpdate{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, downloadPrefix))
	if payload == "" {
		return ProgressUpdate{}, false
	}
	if dest, ok := strings.CutPrefix(payload, "Destination:"); ok {
		return ProgressUpdate{Stage: "Destination", Message: strings.TrimSpace(dest)}, true
	}
	if strings.HasSuffix(payload, "has already been downloaded") {
		return ProgressUpdate{Stage: "Downloaded", Percent: 100, Message: payload}, true
	}

	fields := strings.Fields(payload)
	percentText, ok := strings.CutSuffix(fields[0], "%")
	if !ok {
		return ProgressUpdate{}, false
	}
	percent, err := strconv.ParseFloat(percentText, 64)
	if err != nil {
		return ProgressUpdate{}, false
	}
	return ProgressUpdate{
		Stage:   "Downloading",
		Percent: percent,
		Message: strings.TrimSpace(strings.Join(fields[1:], " ")),
	}, true
}
