package gateway

import (
	"encoding/json"
	"fmt"
)

type reportBlob struct {
	ReportBlobURI string `json:"ReportBlobUri"`
}

// decodeBlobList parses the listing response. The gateway sometimes
// returns the JSON array encoded a second time as a JSON string, so a
// string payload is unwrapped once before decoding the list.
func decodeBlobList(body []byte) ([]reportBlob, error) {
	var inner string
	if err := json.Unmarshal(body, &inner); err == nil {
		body = []byte(inner)
	}

	var blobs []reportBlob
	if err := json.Unmarshal(body, &blobs); err != nil {
		return nil, fmt.Errorf("%w: decode listing: %v", ErrBlobNotFound, err)
	}
	return blobs, nil
}

// firstBlobURI returns the ReportBlobUri of the first list element.
func firstBlobURI(body []byte) (string, error) {
	blobs, err := decodeBlobList(body)
	if err != nil {
		return "", err
	}
	if len(blobs) == 0 || blobs[0].ReportBlobURI == "" {
		return "", fmt.Errorf("%w: listing has no ReportBlobUri", ErrBlobNotFound)
	}
	return blobs[0].ReportBlobURI, nil
}
