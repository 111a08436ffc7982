package http

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/sagarc03/gallery"
)

type commentRequest struct {
	ImageID json.RawMessage `json:"imageId"`
	Content string          `json:"content"`
}

// decodeComment reads a comment from a JSON or form-encoded body. An imageId
// that is neither an integer nor a string holding one decodes as 0 and is
// rejected by the service together with any other invalid field.
func decodeComment(r *http.Request) (gallery.NewComment, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return gallery.NewComment{}, err
		}
		return gallery.NewComment{
			ImageID: parseImageID(r.PostFormValue("imageId")),
			Content: r.PostFormValue("content"),
		}, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return gallery.NewComment{}, err
		}
		return gallery.NewComment{
			ImageID: parseImageID(r.PostFormValue("imageId")),
			Content: r.PostFormValue("content"),
		}, nil
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return gallery.NewComment{}, err
	}

	return gallery.NewComment{
		ImageID: imageIDFromJSON(req.ImageID),
		Content: req.Content,
	}, nil
}

func imageIDFromJSON(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		return parseImageID(s)
	}

	return parseImageID(string(raw))
}

func parseImageID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
