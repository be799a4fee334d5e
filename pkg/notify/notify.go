package notify

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/datadex/pkg/types"
)

// EventType is the storage event that produced a notification.
type EventType string

const (
	EventObjectFinalize       EventType = "OBJECT_FINALIZE"
	EventObjectMetadataUpdate EventType = "OBJECT_METADATA_UPDATE"
	EventObjectDelete         EventType = "OBJECT_DELETE"
	EventObjectArchive        EventType = "OBJECT_ARCHIVE"
)

// Valid reports whether e is one of the four storage event types.
func (e EventType) Valid() bool {
	switch e {
	case EventObjectFinalize, EventObjectMetadataUpdate, EventObjectDelete, EventObjectArchive:
		return true
	}
	return false
}

// Attributes are the message attributes a storage notification carries.
// OverwrittenByGeneration and OverwroteGeneration are only present on
// delete/finalize events involved in an overwrite.
type Attributes struct {
	NotificationConfig      string
	EventType               EventType
	EventTime               time.Time
	PayloadFormat           string
	BucketID                string
	ObjectID                string
	ObjectGeneration        string
	OverwrittenByGeneration string
	OverwroteGeneration     string
}

// Overwritten reports whether this event is the delete half of an object
// overwrite rather than a true removal.
func (a *Attributes) Overwritten() bool {
	return a.OverwrittenByGeneration != ""
}

// ParseAttributes validates and converts the raw attribute map of a pulled
// message. Missing required keys, an unknown event type, and a malformed
// event time are all input validation failures.
func ParseAttributes(raw map[string]string) (*Attributes, error) {
	attrs := &Attributes{
		NotificationConfig:      raw["notificationConfig"],
		PayloadFormat:           raw["payloadFormat"],
		BucketID:                raw["bucketId"],
		ObjectID:                raw["objectId"],
		ObjectGeneration:        raw["objectGeneration"],
		OverwrittenByGeneration: raw["overwrittenByGeneration"],
		OverwroteGeneration:     raw["overwroteGeneration"],
	}

	for _, key := range []string{"eventType", "eventTime", "bucketId", "objectId"} {
		if raw[key] == "" {
			return nil, types.InputValidationError("notification attribute %q missing", key)
		}
	}

	attrs.EventType = EventType(raw["eventType"])
	if !attrs.EventType.Valid() {
		return nil, types.InputValidationError("unknown event type %q", raw["eventType"])
	}

	eventTime, err := time.Parse(time.RFC3339, raw["eventTime"])
	if err != nil {
		return nil, types.InputValidationError("malformed event time %q: %v", raw["eventTime"], err)
	}
	attrs.EventTime = eventTime

	return attrs, nil
}

// Payload is the JSON object-resource document in a notification body.
// The storage API encodes size as a decimal string. Fields beyond these are
// ignored.
type Payload struct {
	Name     string `json:"name"`
	SelfLink string `json:"selfLink"`
	Size     string `json:"size"`
}

// SizeBytes parses the decimal size field. An absent size is zero.
func (p *Payload) SizeBytes() (int64, error) {
	if p.Size == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(p.Size, 10, 64)
	if err != nil {
		return 0, types.InputValidationError("malformed object size %q: %v", p.Size, err)
	}
	return n, nil
}

// DecodePayload decodes the base64 data field of a pulled message into a
// Payload.
func DecodePayload(data string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, types.Utf8Error(err)
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, types.InputValidationError("malformed notification payload: %v", err)
	}
	return &payload, nil
}

// ObjectRef is the catalog meaning of an object path. Dataset is always the
// first path component. Descriptor objects carry the dataset's config;
// everything else under the prefix is a partition whose name is the full
// remainder, slashes included.
type ObjectRef struct {
	Dataset    string
	Partition  string
	Descriptor bool
}

// Classify maps an object path to its catalog meaning. A bare "<dataset>"
// and "<dataset>/dd.json" are both descriptors; any other remainder is the
// partition name. An empty path is unusable.
func Classify(path string) (*ObjectRef, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, types.InputValidationError("empty object path")
	}

	dataset, rest, _ := strings.Cut(trimmed, "/")
	if rest == "" || rest == types.DescriptorFilename {
		return &ObjectRef{Dataset: dataset, Descriptor: true}, nil
	}
	return &ObjectRef{Dataset: dataset, Partition: rest}, nil
}
