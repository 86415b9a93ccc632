package codec

import (
	"encoding/base64"
	"net/url"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
)

// SupportedFormats are the container names registered with the image package.
var SupportedFormats = []string{"png", "jpeg", "gif", "bmp", "tiff", "webp"}

func supported(name string) bool {
	for _, f := range SupportedFormats {
		if f == name {
			return true
		}
	}
	return false
}

// ReadLocator resolves a history-image locator to its compressed bytes.
// Accepted forms: data URIs with a base64 payload, file:// URIs, and plain paths.
func ReadLocator(locator string) ([]byte, error) {
	switch {
	case locator == "":
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "empty image locator")
	case strings.HasPrefix(locator, "data:"):
		return readDataURI(locator)
	case strings.HasPrefix(locator, "file://"):
		u, err := url.Parse(locator)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "parse file locator")
		}
		return readFile(u.Path)
	default:
		return readFile(locator)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "history image missing").WithMetadata("path", path)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "read history image").WithMetadata("path", path)
	}
	return data, nil
}

// readDataURI accepts "data:[<mediatype>];base64,<payload>".
func readDataURI(locator string) ([]byte, error) {
	comma := strings.IndexByte(locator, ',')
	if comma < 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "data URI without payload")
	}
	meta := locator[len("data:"):comma]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "data URI must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(locator[comma+1:])
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "decode data URI").
			WithMetadata("length", strconv.Itoa(len(locator)))
	}
	return data, nil
}
