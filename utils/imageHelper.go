package utils

import (
	"bytes"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
)

const MaxUploadSizeBytes = 5 << 20

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// DetectImageType returns the content type and file extension of an upload,
// rejecting anything other than jpeg and png.
func DetectImageType(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", NewValidationError("file is empty")
	}
	if len(data) > MaxUploadSizeBytes {
		return "", "", NewValidationError("file size exceeds 5MB limit")
	}
	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", "", NewValidationError("unsupported file type: " + contentType)
	}
	return contentType, ext, nil
}

// CreateThumbnail resizes to 200px wide, keeping the aspect ratio, as JPEG.
func CreateThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, NewValidationError("image could not be decoded")
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ThumbnailObjectKey maps products/a.png to products/thumbnails/a.jpg.
func ThumbnailObjectKey(objectKey string) string {
	dir, file := path.Split(objectKey)
	file = strings.TrimSuffix(file, path.Ext(file)) + ".jpg"
	return dir + "thumbnails/" + file
}
