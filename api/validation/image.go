package validation

import (
	"bytes"
	"io"
	"mime/multipart"

	"imageGateway/api/models"
)

var magicBytes = map[models.ImageFormat][]byte{
	models.FormatPNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	models.FormatJPEG: {0xFF, 0xD8, 0xFF},
}

// DetectImageFormat sniffs the leading bytes of an uploaded file and
// rewinds it. Only JPEG and PNG are accepted as reference images.
func DetectImageFormat(file multipart.File) (models.ImageFormat, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	for format, signature := range magicBytes {
		if bytes.HasPrefix(buffer[:n], signature) {
			return format, nil
		}
	}

	return "", ErrInvalidImageType
}

// ValidateImage checks one uploaded reference image: size cap and
// magic-byte format. The detected format is returned for storage metadata.
func ValidateImage(header *multipart.FileHeader, file multipart.File) (models.ImageFormat, error) {
	if header.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}
	return DetectImageFormat(file)
}
