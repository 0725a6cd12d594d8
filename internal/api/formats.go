package api

import (
	"net/http"

	"github.com/snarg/whisper-web/internal/render"
	"github.com/snarg/whisper-web/internal/transcribe"
)

type formatInfo struct {
	Format     transcribe.Format `json:"format"`
	Default    bool              `json:"default"`
	Structured bool              `json:"structured"`
	Download   string            `json:"download,omitempty"`
}

// FormatsHandler lists the response formats the page offers, with the file
// each one downloads.
func FormatsHandler(w http.ResponseWriter, r *http.Request) {
	formats := make([]formatInfo, 0, len(transcribe.Formats))
	for _, f := range transcribe.Formats {
		info := formatInfo{
			Format:     f,
			Default:    f == transcribe.DefaultFormat,
			Structured: f.Structured(),
		}
		if name, ok := render.DownloadFilename(f); ok {
			info.Download = name
		}
		formats = append(formats, info)
	}
	WriteJSON(w, http.StatusOK, formats)
}
