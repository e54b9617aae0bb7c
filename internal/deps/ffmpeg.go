package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFmpegForDownloader reports the FFmpeg binary yt-dlp will merge
// formats with.
//
// yt-dlp prefers an ffmpeg binary next to its own executable and falls back
// to resolving "ffmpeg" from PATH. FFmpeg is optional: without it yt-dlp
// still downloads single-file formats.
func CheckFFmpegForDownloader(downloaderCommand string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Used by yt-dlp to merge audio and video",
		Optional:    true,
	}

	downloader := strings.TrimSpace(downloaderCommand)
	if downloader != "" {
		if resolved, err := exec.LookPath(downloader); err == nil {
			candidate := sidecarPath(resolved, "ffmpeg")
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Path = candidate
				result.Available = true
				return result
			}
		}
	}

	ffmpegName := "ffmpeg"
	if ffmpegPath, err := exec.LookPath(ffmpegName); err == nil {
		result.Command = ffmpegPath
		result.Path = ffmpegPath
		result.Available = true
		return result
	}

	result.Command = ffmpegName
	result.Detail = fmt.Sprintf("binary %q not found", ffmpegName)
	return result
}

func sidecarPath(binaryPath, name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(binaryPath), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
